// Package probe inspects staged media files before they are assembled.
package probe

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

// ErrNoMovie is returned for files without a moov box.
var ErrNoMovie = errors.New("probe: no moov box")

// Info is the track layout of an MP4 file.
type Info struct {
	HasVideo   bool
	HasAudio   bool
	Tracks     int
	Fragmented bool
	Duration   time.Duration
}

// MP4 inspects files with mp4ff. Media data is not read.
type MP4 struct{}

func (MP4) Inspect(path string) (Info, error) { return Inspect(path) }

// Inspect decodes the box structure of the MP4 file at path.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	mf, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return Info{}, fmt.Errorf("probe: decode: %w", err)
	}
	moov := mf.Moov
	if moov == nil && mf.Init != nil {
		moov = mf.Init.Moov
	}
	if moov == nil {
		return Info{}, ErrNoMovie
	}
	info := Info{Tracks: len(moov.Traks), Fragmented: mf.IsFragmented()}
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
			continue
		}
		switch trak.Mdia.Hdlr.HandlerType {
		case "vide":
			info.HasVideo = true
		case "soun":
			info.HasAudio = true
		}
	}
	if mvhd := moov.Mvhd; mvhd != nil && mvhd.Timescale > 0 {
		info.Duration = time.Duration(float64(mvhd.Duration) / float64(mvhd.Timescale) * float64(time.Second))
	}
	return info, nil
}
