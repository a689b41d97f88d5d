// Command tube-cache serves cached video and audio downloads, fetching and
// assembling them on first request.
//
//	serve  Run the HTTP server (GET /download, /streams, /healthz, /metrics)
//	fetch  Materialize one artifact into the cache and print its file name
//	check  Verify binaries, directories and upstream reachability
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/snapetech/tubecache/internal/config"
	"github.com/snapetech/tubecache/internal/health"
	"github.com/snapetech/tubecache/internal/materializer"
	"github.com/snapetech/tubecache/internal/metrics"
	"github.com/snapetech/tubecache/internal/server"
	"github.com/snapetech/tubecache/internal/telemetry"
)

var version = "dev"

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[tube-cache] ")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveAddr := serveCmd.String("addr", "", "Listen address (default: TUBE_CACHE_ADDR or :8000)")
	serveCache := serveCmd.String("cache", "", "Cache dir (default: TUBE_CACHE_CACHE_DIR)")
	serveOrigins := serveCmd.String("origins", "", "Comma-separated allowed CORS origins (default: TUBE_CACHE_ALLOWED_ORIGINS)")

	fetchCmd := flag.NewFlagSet("fetch", flag.ExitOnError)
	fetchURL := fetchCmd.String("url", "", "Video URL or ID")
	fetchKind := fetchCmd.String("kind", "video", "video or audio")
	fetchQuality := fetchCmd.String("quality", "", "Video quality, e.g. 720p (default: first available)")
	fetchCache := fetchCmd.String("cache", "", "Cache dir (default: TUBE_CACHE_CACHE_DIR)")

	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkUpstream := checkCmd.String("upstream", "https://www.youtube.com/", "Upstream URL to probe; empty to skip")
	checkServer := checkCmd.String("server", "", "Base URL of a running tube-cache to probe, e.g. http://localhost:8000")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <serve|fetch|check> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  serve  Run the HTTP server\n")
		fmt.Fprintf(os.Stderr, "  fetch  Materialize one artifact into the cache\n")
		fmt.Fprintf(os.Stderr, "  check  Verify ffmpeg, yt-dlp, directories and upstream\n")
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		_ = serveCmd.Parse(os.Args[2:])
		if *serveAddr != "" {
			cfg.Addr = *serveAddr
		}
		if *serveCache != "" {
			cfg.CacheDir = *serveCache
		}
		if *serveOrigins != "" {
			cfg.AllowedOrigins = strings.Split(*serveOrigins, ",")
		}
		if err := serve(cfg); err != nil {
			log.Printf("Serve failed: %v", err)
			os.Exit(1)
		}

	case "fetch":
		_ = fetchCmd.Parse(os.Args[2:])
		if *fetchURL == "" {
			fmt.Fprintln(os.Stderr, "fetch: -url is required")
			os.Exit(2)
		}
		if *fetchCache != "" {
			cfg.CacheDir = *fetchCache
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		name, err := fetch(ctx, cfg, materializer.Request{URL: *fetchURL, Kind: *fetchKind, Quality: *fetchQuality})
		if err != nil {
			log.Printf("Fetch failed: %v", err)
			stop()
			os.Exit(1)
		}
		fmt.Println(name)

	case "check":
		_ = checkCmd.Parse(os.Args[2:])
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if failed := check(ctx, cfg, *checkUpstream, *checkServer); failed > 0 {
			stop()
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var traceOut io.Writer
	if cfg.TraceStdout {
		traceOut = os.Stdout
	}
	shutdownTracing, err := telemetry.Setup(traceOut, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("Tracing shutdown: %v", err)
		}
	}()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if n, err := materializer.SweepStaging(cfg.StagingDir, cfg.StagingMaxAge); err != nil {
		log.Printf("Staging sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("Staging sweep removed %d stale dir(s) from %s", n, cfg.StagingDir)
	}

	m := metrics.New()
	p := newPipeline(cfg, st, m)
	log.Printf("Cache backend=%s dir=%s staging=%s parallel=%t verify=%t transcode=%t",
		cfg.Backend, cfg.CacheDir, cfg.StagingDir, cfg.ParallelFetch, cfg.VerifyMP4, cfg.MuxTranscode)

	srv := &server.Server{
		Addr:           cfg.Addr,
		Pipeline:       p,
		Store:          st,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxConns:       cfg.MaxConns,
		Metrics:        m,
		Ready:          readiness(cfg),
	}
	return srv.Run(ctx)
}

func fetch(ctx context.Context, cfg *config.Config, req materializer.Request) (string, error) {
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return "", err
	}
	defer closeStore()
	res, err := newPipeline(cfg, st, nil).Materialize(ctx, req)
	if err != nil {
		return "", err
	}
	if res.Hit {
		log.Printf("Already cached: %s", res.Key)
	}
	return res.Key.FileName(), nil
}

type checkItem struct {
	name string
	run  func() error
}

// check runs every dependency check, prints one line per check and returns the failure count.
func check(ctx context.Context, cfg *config.Config, upstream, serverURL string) int {
	checks := []checkItem{
		{"yt-dlp", func() error { return health.CheckBinary(cfg.YTDLPPath) }},
		{"ffmpeg", func() error { return health.CheckBinary(cfg.FFmpegPath) }},
		{"cache dir", func() error { return health.CheckWritableDir(cfg.CacheDir) }},
		{"staging dir", func() error { return health.CheckWritableDir(cfg.StagingDir) }},
	}
	if upstream != "" {
		checks = append(checks, checkItem{"upstream", func() error { return health.CheckUpstream(ctx, upstream) }})
	}
	if serverURL != "" {
		checks = append(checks, checkItem{"server", func() error {
			return health.CheckEndpoints(ctx, strings.TrimSuffix(serverURL, "/"))
		}})
	}
	failed := 0
	for _, c := range checks {
		if err := c.run(); err != nil {
			failed++
			fmt.Printf("FAIL %-12s %v\n", c.name, err)
			continue
		}
		fmt.Printf("OK   %s\n", c.name)
	}
	return failed
}
