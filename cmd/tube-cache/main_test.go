package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/tubecache/internal/config"
	"github.com/snapetech/tubecache/internal/materializer"
	"github.com/snapetech/tubecache/internal/probe"
	"github.com/snapetech/tubecache/internal/provider"
	"github.com/snapetech/tubecache/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		CacheDir:        filepath.Join(dir, "cache"),
		StagingDir:      filepath.Join(dir, "staging"),
		Backend:         config.BackendFS,
		SQLitePath:      filepath.Join(dir, "cache", "artifacts.db"),
		YTDLPPath:       "yt-dlp",
		FFmpegPath:      "ffmpeg",
		HostConcurrency: 2,
		RangeDownload:   true,
		DownloadChunk:   1 << 20,
		VerifyMP4:       true,
		FetchTimeout:    5 * time.Minute,
	}
}

func TestOpenStore_backends(t *testing.T) {
	cfg := testConfig(t)
	st, closeFn, err := openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*store.FS); !ok {
		t.Errorf("fs backend: got %T", st)
	}
	closeFn()

	cfg.Backend = config.BackendSQLite
	st, closeFn, err = openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := st.(*store.SQLite); !ok {
		t.Errorf("sqlite backend: got %T", st)
	}
}

func TestNewPipeline_wiring(t *testing.T) {
	cfg := testConfig(t)
	st, closeFn, err := openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	p := newPipeline(cfg, st, nil)
	y, ok := p.Provider.(*provider.YTDLP)
	if !ok {
		t.Fatalf("provider: %T", p.Provider)
	}
	if y.ChunkSize != 1<<20 || y.HostSem == nil || y.Client == nil {
		t.Errorf("provider not configured: chunk=%d sem=%v", y.ChunkSize, y.HostSem != nil)
	}
	if y.FetchTimeout != 5*time.Minute || y.Client.Timeout != 0 {
		t.Errorf("fetch timeout: stream=%s client=%s, want 5m0s and 0s", y.FetchTimeout, y.Client.Timeout)
	}
	if _, ok := p.Inspector.(probe.MP4); !ok {
		t.Errorf("inspector: %T", p.Inspector)
	}
	cfg.VerifyMP4 = false
	if p := newPipeline(cfg, st, nil); p.Inspector != nil {
		t.Error("inspector set with VerifyMP4 off")
	}
}

func TestReadiness(t *testing.T) {
	cfg := testConfig(t)
	if err := readiness(cfg)(context.Background()); err != nil {
		t.Fatalf("readiness: %v", err)
	}
	cfg.StagingDir = ""
	if err := readiness(cfg)(context.Background()); err == nil {
		t.Error("expected error with empty staging dir")
	}
}

func TestFetch_invalidRequestNeverTouchesProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.YTDLPPath = filepath.Join(t.TempDir(), "missing-yt-dlp")
	_, err := fetch(context.Background(), cfg, materializer.Request{URL: "dQw4w9WgXcQ", Kind: "subtitle"})
	if err == nil {
		t.Fatal("expected error")
	}
}
