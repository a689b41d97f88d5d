package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "TUBE_CACHE_"

// Backend names accepted in TUBE_CACHE_BACKEND.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

// Config holds server, store, provider and muxer settings.
// Load from env (after LoadEnvFile); subcommand flags override fields.
type Config struct {
	// HTTP
	Addr           string
	AllowedOrigins []string
	MaxConns       int // listener cap; 0 = unlimited

	// Store
	CacheDir   string
	StagingDir string
	Backend    string // "fs" | "sqlite"
	SQLitePath string

	// Provider
	YTDLPPath       string
	ResolveTimeout  time.Duration
	MaxBandwidth    int64 // bytes/s across upstream downloads; 0 = unlimited
	RangeDownload   bool  // fetch in DownloadChunk-sized Range requests
	DownloadChunk   int64
	HostConcurrency int
	FetchTimeout    time.Duration // per-stream download timeout across all Range requests; 0 = none

	// Pipeline
	FFmpegPath    string
	MuxTranscode  bool // re-encode libx264/aac instead of stream copy
	ParallelFetch bool
	VerifyMP4     bool
	StagingMaxAge time.Duration // staging dirs older than this are swept at startup

	// Telemetry
	TraceStdout bool
}

// Load reads TUBE_CACHE_* variables.
func Load() *Config {
	cacheDir := getEnv("CACHE_DIR", "./cache")
	c := &Config{
		Addr:           getEnv("ADDR", ":8000"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MaxConns:       getEnvInt("MAX_CONNS", 256),

		CacheDir:   cacheDir,
		StagingDir: getEnv("STAGING_DIR", filepath.Join(os.TempDir(), "tube-cache-staging")),
		Backend:    strings.ToLower(getEnv("BACKEND", BackendFS)),
		SQLitePath: getEnv("SQLITE_PATH", filepath.Join(cacheDir, "artifacts.db")),

		YTDLPPath:       getEnv("YTDLP", "yt-dlp"),
		ResolveTimeout:  getEnvDuration("RESOLVE_TIMEOUT", 60*time.Second),
		MaxBandwidth:    getEnvInt64("MAX_BANDWIDTH", 0),
		RangeDownload:   getEnvBool("RANGE_DOWNLOAD", true),
		DownloadChunk:   getEnvInt64("DOWNLOAD_CHUNK", 10<<20),
		HostConcurrency: getEnvInt("HOST_CONCURRENCY", 4),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 0),

		FFmpegPath:    getEnv("FFMPEG", "ffmpeg"),
		MuxTranscode:  getEnvBool("MUX_TRANSCODE", false),
		ParallelFetch: getEnvBool("PARALLEL_FETCH", true),
		VerifyMP4:     getEnvBool("VERIFY_MP4", true),
		StagingMaxAge: getEnvDuration("STAGING_MAX_AGE", time.Hour),

		TraceStdout: getEnvBool("TRACE_STDOUT", false),
	}
	if c.Backend != BackendSQLite {
		c.Backend = BackendFS
	}
	if c.DownloadChunk <= 0 {
		c.DownloadChunk = 10 << 20
	}
	return c
}

// Chunk is the Range request size the provider should use; 0 means single GET.
func (c *Config) Chunk() int64 {
	if !c.RangeDownload {
		return 0
	}
	return c.DownloadChunk
}

func getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	switch strings.ToLower(v) {
	case "":
		return defaultVal
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated value; "*" is kept as a single entry.
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(envPrefix + key)
	if strings.TrimSpace(v) == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
