package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckUpstream_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	if err := CheckUpstream(context.Background(), srv.URL); err != nil {
		t.Fatalf("CheckUpstream: %v", err)
	}
}

func TestCheckUpstream_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	if err := CheckUpstream(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 403")
	}
}

func TestCheckUpstream_emptyURL(t *testing.T) {
	if err := CheckUpstream(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestCheckEndpoints_ok(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	srv := httptest.NewServer(mux)
	defer srv.Close()
	if err := CheckEndpoints(context.Background(), srv.URL); err != nil {
		t.Fatalf("CheckEndpoints: %v", err)
	}
}

func TestCheckEndpoints_unhealthy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(503) })
	srv := httptest.NewServer(mux)
	defer srv.Close()
	if err := CheckEndpoints(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestCheckWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	if err := CheckWritableDir(dir); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %d entries", len(entries))
	}
	if err := CheckWritableDir(""); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestCheckBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	bin := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := CheckBinary(bin); err != nil {
		t.Fatalf("CheckBinary(%s): %v", bin, err)
	}
	if err := CheckBinary("definitely-not-a-real-binary-xyz"); err == nil {
		t.Error("expected error for missing binary")
	}
}
