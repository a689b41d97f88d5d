package store

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/snapetech/tubecache/internal/cache"
)

const partialPrefix = ".partial-"

// FS stores one file per key under Dir, named cache.Key.FileName().
// Publish writes to a hidden temp file in Dir then renames, so readers see
// either nothing or the whole artifact.
type FS struct {
	Dir string
}

// NewFS creates dir if needed and removes temp files left by an interrupted publish.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	s := &FS{Dir: dir}
	s.sweepPartials()
	return s, nil
}

// Path returns the final path for key. Stable: same key always maps to same path.
func (s *FS) Path(key cache.Key) string {
	return filepath.Join(s.Dir, key.FileName())
}

func (s *FS) Exists(key cache.Key) bool {
	fi, err := os.Stat(s.Path(key))
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

func (s *FS) Open(key cache.Key) (*Artifact, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, ErrNotFound
	}
	return &Artifact{ReadSeekCloser: f, Name: key.FileName(), Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (s *FS) Publish(key cache.Key, srcPath string) error {
	fi, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("store: publish %s: %w", key, err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("store: publish %s: empty artifact", key)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, partialPrefix+key.String()+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	// Same filesystem: a rename is enough. Otherwise copy into the temp file.
	if err := os.Rename(srcPath, tmpPath); err != nil {
		if err := copyFile(srcPath, tmpPath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("store: copy %s: %w", key, err)
		}
		os.Remove(srcPath)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		log.Printf("store: chmod failed key=%s err=%v", key, err)
	}
	if err := os.Rename(tmpPath, s.Path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: rename %s: %w", key, err)
	}
	_ = syncDir(s.Dir)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// sweepPartials removes temp files older than a minute; younger ones may belong
// to another process still publishing into the same directory.
func (s *FS) sweepPartials() {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-time.Minute)
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), partialPrefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(s.Dir, e.Name())
		if err := os.Remove(p); err != nil {
			log.Printf("store: sweep partial failed path=%q err=%v", p, err)
			continue
		}
		log.Printf("store: swept stale partial %s", e.Name())
	}
}
