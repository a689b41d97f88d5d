package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNew_rateLimitedBodyIsComplete(t *testing.T) {
	body := strings.Repeat("a", 200*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	c := New(Config{MaxBandwidth: 1 << 20})
	if _, ok := c.Transport.(*rateLimitedTransport); !ok {
		t.Fatalf("transport = %T, want rateLimitedTransport", c.Transport)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(body) {
		t.Errorf("read %d bytes, want %d", len(got), len(body))
	}
}

func TestNew_unlimitedUsesPlainTransport(t *testing.T) {
	c := New(Config{})
	if _, ok := c.Transport.(*http.Transport); !ok {
		t.Errorf("transport = %T, want *http.Transport", c.Transport)
	}
}

func TestHostSemaphore_limitsPerHost(t *testing.T) {
	sem := NewHostSemaphore(1)
	ctx := context.Background()
	release, err := sem.Acquire(ctx, "https://a.example/x?sig=1")
	if err != nil {
		t.Fatal(err)
	}
	// Other host is independent.
	r2, err := sem.Acquire(ctx, "https://b.example/y")
	if err != nil {
		t.Fatal(err)
	}
	r2()

	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := sem.Acquire(ctx2, "https://a.example/other"); err == nil {
		t.Fatal("second acquire on same host should block until ctx timeout")
	}
	release()
	r3, err := sem.Acquire(ctx, "https://a.example/z")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	r3()
}
