package materializer

import (
	"fmt"

	"github.com/snapetech/tubecache/internal/cache"
	"github.com/snapetech/tubecache/internal/provider"
)

const (
	videoMime = "video/mp4"
	audioMime = "audio/mp4"
)

// selection is what a fill stages: Video is zero for audio requests.
type selection struct {
	Video provider.Descriptor
	Audio provider.Descriptor
}

// selectStreams applies the selection policy: first match in provider order.
// Video requests need an adaptive video/mp4 stream of the requested quality
// (any quality without a hint) and an audio/mp4 audio-only stream; audio
// requests need only the latter.
func selectStreams(ds []provider.Descriptor, key cache.Key) (selection, error) {
	var sel selection
	if key.Kind == cache.KindVideo {
		v, ok := firstMatch(ds, func(d provider.Descriptor) bool {
			return d.Kind == provider.VideoOnly && d.MimeType == videoMime &&
				(key.AnyQuality() || d.Quality == key.Quality)
		})
		if !ok {
			if key.AnyQuality() {
				return sel, fmt.Errorf("%w: %s video", ErrNoStream, videoMime)
			}
			return sel, fmt.Errorf("%w: %s video at %s", ErrNoStream, videoMime, key.Quality)
		}
		sel.Video = v
	}
	a, ok := firstMatch(ds, func(d provider.Descriptor) bool {
		return d.Kind == provider.AudioOnly && d.MimeType == audioMime
	})
	if !ok {
		return sel, fmt.Errorf("%w: %s audio", ErrNoStream, audioMime)
	}
	sel.Audio = a
	return sel, nil
}

func firstMatch(ds []provider.Descriptor, ok func(provider.Descriptor) bool) (provider.Descriptor, bool) {
	for _, d := range ds {
		if ok(d) {
			return d, true
		}
	}
	return provider.Descriptor{}, false
}
