package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/snapetech/tubecache/internal/httpclient"
)

// YTDLP resolves videos with the yt-dlp binary (JSON dump, no download) and
// fetches the resolved stream URLs itself over HTTP.
type YTDLP struct {
	Binary         string // default "yt-dlp"
	ResolveTimeout time.Duration
	Client         *http.Client
	HostSem        *httpclient.HostSemaphore
	// ChunkSize > 0 downloads with Range requests of this size; upstream
	// throttles large single GETs.
	ChunkSize int64
	// FetchTimeout bounds one whole stream download across all its Range
	// requests, starting once the host slot is held; 0 = none.
	FetchTimeout time.Duration
}

type ytdlpInfo struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Formats []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID       string            `json:"format_id"`
	URL            string            `json:"url"`
	Ext            string            `json:"ext"`
	Protocol       string            `json:"protocol"`
	VCodec         string            `json:"vcodec"`
	ACodec         string            `json:"acodec"`
	Height         int               `json:"height"`
	Filesize       int64             `json:"filesize"`
	FilesizeApprox int64             `json:"filesize_approx"`
	TBR            float64           `json:"tbr"`
	HTTPHeaders    map[string]string `json:"http_headers"`
}

func (y *YTDLP) Resolve(ctx context.Context, ref string) ([]Descriptor, error) {
	bin := y.Binary
	if bin == "" {
		bin = "yt-dlp"
	}
	timeout := y.ResolveTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, "--dump-single-json", "--no-playlist", "--no-warnings", "--skip-download", "--", ref)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp: %w", ctx.Err())
		}
		return nil, fmt.Errorf("yt-dlp: %s", lastLine(stderr.String(), err))
	}
	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("yt-dlp: decode output: %w", err)
	}
	ds := descriptorsFromFormats(info.Formats)
	log.Printf("provider: resolved id=%s formats=%d usable=%d dur=%s", info.ID, len(info.Formats), len(ds), time.Since(start).Round(time.Millisecond))
	return ds, nil
}

// Fetch downloads d to destPath under the host semaphore and FetchTimeout.
func (y *YTDLP) Fetch(ctx context.Context, d Descriptor, destPath string) error {
	client := y.Client
	if client == nil {
		client = httpclient.New(httpclient.Config{})
	}
	if y.HostSem != nil {
		release, err := y.HostSem.Acquire(ctx, d.URL)
		if err != nil {
			return err
		}
		defer release()
	}
	if y.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.FetchTimeout)
		defer cancel()
	}
	return Download(ctx, client, d, destPath, y.ChunkSize)
}

// descriptorsFromFormats keeps plain HTTP formats that carry at least one track,
// preserving upstream order.
func descriptorsFromFormats(formats []ytdlpFormat) []Descriptor {
	out := make([]Descriptor, 0, len(formats))
	for _, f := range formats {
		if f.URL == "" || (f.Protocol != "https" && f.Protocol != "http") {
			continue
		}
		hasV := f.VCodec != "" && f.VCodec != "none"
		hasA := f.ACodec != "" && f.ACodec != "none"
		d := Descriptor{
			ID:      f.FormatID,
			URL:     f.URL,
			Bitrate: int64(f.TBR * 1000),
			Size:       f.Filesize,
			SizeApprox: f.FilesizeApprox,
			Headers:    f.HTTPHeaders,
		}
		switch {
		case hasV && hasA:
			d.Kind = Progressive
			d.Codecs = f.VCodec + ", " + f.ACodec
		case hasV:
			d.Kind = VideoOnly
			d.Codecs = f.VCodec
		case hasA:
			d.Kind = AudioOnly
			d.Codecs = f.ACodec
		default:
			continue
		}
		d.MimeType = mimeFor(f.Ext, hasV)
		if hasV && f.Height > 0 {
			d.Quality = fmt.Sprintf("%dp", f.Height)
		}
		out = append(out, d)
	}
	return out
}

func mimeFor(ext string, video bool) string {
	major := "audio"
	if video {
		major = "video"
	}
	switch ext {
	case "mp4", "m4a", "m4v":
		return major + "/mp4"
	case "webm", "weba":
		return major + "/webm"
	case "3gp":
		return major + "/3gpp"
	}
	return major + "/" + ext
}

func lastLine(s string, fallback error) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback.Error()
	}
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimPrefix(s, "ERROR: ")
}
