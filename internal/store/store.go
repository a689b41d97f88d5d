// Package store holds published artifacts keyed by cache key.
//
// A Store never exposes a partially written artifact: Publish either makes the
// complete artifact visible under its key or leaves the store unchanged.
// There is no eviction or expiry.
package store

import (
	"errors"
	"io"
	"time"

	"github.com/snapetech/tubecache/internal/cache"
)

// ErrNotFound is returned by Open when no artifact is stored under the key.
var ErrNotFound = errors.New("artifact not found")

// Store is the artifact store used by the materializer and the HTTP boundary.
// Implementations must be safe for concurrent use.
type Store interface {
	// Exists reports whether a complete artifact is stored under key.
	Exists(key cache.Key) bool
	// Open returns a read handle; callers must Close it.
	Open(key cache.Key) (*Artifact, error)
	// Publish moves the completed file at srcPath into the store under key.
	// srcPath is consumed (moved or removed) on success.
	Publish(key cache.Key, srcPath string) error
}

// Artifact is a read handle on a published artifact.
type Artifact struct {
	io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
}
