// Package provider resolves a video into fetchable elementary streams and
// downloads them.
package provider

import (
	"context"
	"fmt"
)

// StreamKind says which elementary tracks a stream carries.
type StreamKind int

const (
	// Progressive streams already carry video and audio.
	Progressive StreamKind = iota
	VideoOnly
	AudioOnly
)

func (k StreamKind) String() string {
	switch k {
	case Progressive:
		return "progressive"
	case VideoOnly:
		return "video-only"
	case AudioOnly:
		return "audio-only"
	default:
		return fmt.Sprintf("StreamKind(%d)", int(k))
	}
}

// Descriptor describes one fetchable stream.
type Descriptor struct {
	ID       string // upstream format id (itag)
	URL      string
	MimeType string // base type without codecs, e.g. "video/mp4"
	Codecs   string
	Kind     StreamKind
	Quality  string // video height label such as "720p"; empty for audio-only
	Bitrate  int64  // bits per second, 0 if unknown
	Size     int64  // exact bytes, 0 if unknown
	// SizeApprox is the resolver's estimate; never used to validate a transfer.
	SizeApprox int64
	Headers    map[string]string
}

// Adaptive reports whether the stream carries a single elementary track.
func (d Descriptor) Adaptive() bool {
	return d.Kind == VideoOnly || d.Kind == AudioOnly
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s %s %s", d.ID, d.Kind, d.MimeType, d.Quality)
}

// StreamProvider is the remote platform client consumed by the materializer.
type StreamProvider interface {
	// Resolve lists the streams available for the video at ref, in upstream order.
	Resolve(ctx context.Context, ref string) ([]Descriptor, error)
	// Fetch downloads d to destPath, creating or truncating it.
	Fetch(ctx context.Context, d Descriptor, destPath string) error
}
