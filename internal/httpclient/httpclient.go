// Package httpclient builds the HTTP clients used to talk to upstream media hosts.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
	UserAgent              = "Mozilla/5.0 (X11; Linux x86_64) tube-cache/1.0"
)

// Config tunes a media download client.
type Config struct {
	// Timeout bounds a whole request including body; 0 = none (large downloads
	// rely on context cancellation instead).
	Timeout time.Duration
	// MaxBandwidth caps body read throughput in bytes per second; 0 = unlimited.
	MaxBandwidth int64
}

var defaultClient = New(Config{Timeout: DefaultTimeout})

// Default returns the shared tuned HTTP client for short API-style requests.
func Default() *http.Client {
	return defaultClient
}

// New returns a client with a transport tuned for large sequential downloads.
func New(cfg Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	var rt http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true, // media is already compressed
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if cfg.MaxBandwidth > 0 {
		rt = &rateLimitedTransport{
			base:    rt,
			limiter: rate.NewLimiter(rate.Limit(cfg.MaxBandwidth), burstFor(cfg.MaxBandwidth)),
		}
	}
	return &http.Client{Timeout: cfg.Timeout, Transport: rt}
}

// burstFor keeps the burst at least one read buffer so WaitN never rejects a read.
func burstFor(bytesPerSec int64) int {
	const minBurst = 64 * 1024
	if bytesPerSec < minBurst {
		return minBurst
	}
	return int(bytesPerSec)
}
