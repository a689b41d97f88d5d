// Package muxer combines staged video and audio elementary streams into one
// playable container.
package muxer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ContainerFormat is the output container passed to the engine.
type ContainerFormat string

const MP4 ContainerFormat = "mp4"

// Muxer writes outputPath from videoPath and audioPath.
type Muxer interface {
	Combine(ctx context.Context, videoPath, audioPath, outputPath string, format ContainerFormat) error
}

// FFmpeg muxes with the ffmpeg binary. By default streams are copied as-is;
// Transcode re-encodes to H.264/AAC for players that reject the source codecs.
type FFmpeg struct {
	Path      string // default "ffmpeg"
	Transcode bool
}

func (m *FFmpeg) Combine(ctx context.Context, videoPath, audioPath, outputPath string, format ContainerFormat) error {
	bin := m.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, m.args(videoPath, audioPath, outputPath, format)...)
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, firstLine(msg))
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func (m *FFmpeg) args(videoPath, audioPath, outputPath string, format ContainerFormat) []string {
	if format == "" {
		format = MP4
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
	}
	if m.Transcode {
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-c:a", "aac")
	} else {
		args = append(args, "-c", "copy")
	}
	if format == MP4 {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-f", string(format), outputPath)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
