package main

import (
	"context"
	"fmt"
	"os"

	"github.com/snapetech/tubecache/internal/config"
	"github.com/snapetech/tubecache/internal/health"
	"github.com/snapetech/tubecache/internal/httpclient"
	"github.com/snapetech/tubecache/internal/materializer"
	"github.com/snapetech/tubecache/internal/metrics"
	"github.com/snapetech/tubecache/internal/muxer"
	"github.com/snapetech/tubecache/internal/probe"
	"github.com/snapetech/tubecache/internal/provider"
	"github.com/snapetech/tubecache/internal/store"
)

// openStore opens the configured backend. The returned func releases it.
func openStore(cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, nil, err
		}
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := store.NewFS(cfg.CacheDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache dir: %w", err)
		}
		return s, func() error { return nil }, nil
	}
}

func newPipeline(cfg *config.Config, st store.Store, m *metrics.Metrics) *materializer.Pipeline {
	p := &materializer.Pipeline{
		Store: st,
		Provider: &provider.YTDLP{
			Binary:         cfg.YTDLPPath,
			ResolveTimeout: cfg.ResolveTimeout,
			Client:         httpclient.New(httpclient.Config{MaxBandwidth: cfg.MaxBandwidth}),
			HostSem:        httpclient.NewHostSemaphore(cfg.HostConcurrency),
			ChunkSize:      cfg.Chunk(),
			FetchTimeout:   cfg.FetchTimeout,
		},
		Muxer:      &muxer.FFmpeg{Path: cfg.FFmpegPath, Transcode: cfg.MuxTranscode},
		StagingDir: cfg.StagingDir,
		Parallel:   cfg.ParallelFetch,
		Metrics:    m,
	}
	if cfg.VerifyMP4 {
		p.Inspector = probe.MP4{}
	}
	return p
}

// readiness reports whether staging (and the fs cache dir) are writable.
func readiness(cfg *config.Config) func(context.Context) error {
	return func(context.Context) error {
		if err := health.CheckWritableDir(cfg.StagingDir); err != nil {
			return fmt.Errorf("staging: %w", err)
		}
		if cfg.Backend == config.BackendFS {
			if err := health.CheckWritableDir(cfg.CacheDir); err != nil {
				return fmt.Errorf("cache: %w", err)
			}
		}
		return nil
	}
}
