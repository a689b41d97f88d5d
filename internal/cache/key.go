// Package cache derives cache keys and artifact names from download requests.
package cache

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/snapetech/tubecache/internal/safeurl"
)

var (
	ErrInvalidIdentifier = errors.New("invalid video reference")
	ErrInvalidFormat     = errors.New("invalid format: choose 'audio' or 'video'")
	ErrInvalidQuality    = errors.New("invalid quality hint")
)

// Kind is the requested media kind.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// DefaultQuality stands in for an absent quality hint.
const DefaultQuality = "default"

// Extension is the container extension of every stored artifact.
const Extension = ".mp4"

var (
	videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	qualityRe = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)
)

// ParseKind validates a kind token ("video" or "audio").
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindVideo, KindAudio:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// Key names at most one stored artifact.
// Two keys are equal iff VideoID, Kind and Quality are equal.
type Key struct {
	VideoID string
	Kind    Kind
	Quality string // DefaultQuality when the request had no hint
}

// String returns the stable key token, e.g. "dQw4w9WgXcQ_video_720p".
func (k Key) String() string {
	return k.VideoID + "_" + string(k.Kind) + "_" + k.Quality
}

// FileName is the artifact file name; it is also the download filename shown to clients.
func (k Key) FileName() string {
	return k.String() + Extension
}

// AnyQuality reports whether the key was derived without a quality hint.
func (k Key) AnyQuality() bool {
	return k.Quality == DefaultQuality
}

// Derive maps (reference, kind, quality hint) to a Key. It performs no I/O.
// Identical inputs always yield identical keys. An empty hint and the literal
// "default" are the same hint; any other distinct hint yields a distinct key.
func Derive(ref string, kind string, quality string) (Key, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Key{}, err
	}
	id, err := ExtractVideoID(ref)
	if err != nil {
		return Key{}, err
	}
	q, err := normalizeQuality(quality)
	if err != nil {
		return Key{}, err
	}
	return Key{VideoID: id, Kind: k, Quality: q}, nil
}

func normalizeQuality(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" || q == DefaultQuality {
		return DefaultQuality, nil
	}
	if !qualityRe.MatchString(q) {
		return "", fmt.Errorf("%w: %q", ErrInvalidQuality, q)
	}
	return q, nil
}

// ExtractVideoID returns the 11-character video ID embedded in ref.
// ref may be a bare ID or a watch, short, embed, live or youtu.be URL.
func ExtractVideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if videoIDRe.MatchString(ref) {
		return ref, nil
	}
	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	if !safeurl.IsHTTPOrHTTPS(ref) {
		return "", fmt.Errorf("%w: unsupported scheme", ErrInvalidIdentifier)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	id := idFromURL(u)
	if id == "" {
		// Last resort: the text between "v=" and the next "&".
		if i := strings.LastIndex(ref, "v="); i >= 0 {
			id = strings.SplitN(ref[i+2:], "&", 2)[0]
		}
	}
	if !videoIDRe.MatchString(id) {
		return "", fmt.Errorf("%w: no video id in %q", ErrInvalidIdentifier, redact(u))
	}
	return id, nil
}

func idFromURL(u *url.URL) string {
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch host {
	case "youtu.be":
		return segs[0]
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if len(segs) >= 2 {
			switch segs[0] {
			case "shorts", "embed", "live", "v":
				return segs[1]
			}
		}
	}
	return ""
}

func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

// WatchURL is the canonical page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
