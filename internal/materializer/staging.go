package materializer

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const stagingPrefix = "req-"

// staging is the request-scoped directory holding every staged file of one
// fill. release removes it; it must run on every exit path once created.
type staging struct {
	dir string
	key string
}

func newStaging(root, key string) (*staging, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	dir := filepath.Join(root, stagingPrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, err
	}
	return &staging{dir: dir, key: key}, nil
}

// path names a file inside the staging directory.
func (s *staging) path(name string) string {
	return filepath.Join(s.dir, name)
}

// release removes the staging directory. Failures are logged, never returned.
func (s *staging) release() {
	if err := os.RemoveAll(s.dir); err != nil {
		log.Printf("materializer: cleanup failed key=%s dir=%q err=%v", s.key, s.dir, err)
	}
}

// SweepStaging removes staging directories under root last modified before
// olderThan ago. They are left only by a process that died mid-fill.
func SweepStaging(root string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(root, e.Name())
		if err := os.RemoveAll(p); err != nil {
			log.Printf("materializer: sweep failed dir=%q err=%v", p, err)
			continue
		}
		removed++
	}
	return removed, nil
}
