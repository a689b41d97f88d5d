package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile_missing(t *testing.T) {
	err := LoadEnvFile(filepath.Join(t.TempDir(), "nonexistent"))
	if err != nil {
		t.Fatalf("missing file should return nil: %v", err)
	}
}

func TestLoadEnvFile_setsEnv(t *testing.T) {
	t.Setenv("TUBE_CACHE_T_FOO", "")
	os.Unsetenv("TUBE_CACHE_T_FOO")
	t.Setenv("TUBE_CACHE_T_BAZ", "")
	os.Unsetenv("TUBE_CACHE_T_BAZ")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TUBE_CACHE_T_FOO=bar\n# comment\nexport TUBE_CACHE_T_BAZ=quux\nnot a pair\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("TUBE_CACHE_T_FOO") != "bar" {
		t.Errorf("FOO = %q", os.Getenv("TUBE_CACHE_T_FOO"))
	}
	if os.Getenv("TUBE_CACHE_T_BAZ") != "quux" {
		t.Errorf("BAZ = %q", os.Getenv("TUBE_CACHE_T_BAZ"))
	}
}

func TestLoadEnvFile_processEnvWins(t *testing.T) {
	t.Setenv("TUBE_CACHE_T_ADDR", ":1234")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TUBE_CACHE_T_ADDR=:9999\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("TUBE_CACHE_T_ADDR"); got != ":1234" {
		t.Errorf("ADDR = %q, want process value", got)
	}
}

func TestLoadEnvFile_unquote(t *testing.T) {
	t.Setenv("TUBE_CACHE_T_X", "")
	os.Unsetenv("TUBE_CACHE_T_X")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(`TUBE_CACHE_T_X="hello world"`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("TUBE_CACHE_T_X") != "hello world" {
		t.Errorf("X = %q", os.Getenv("TUBE_CACHE_T_X"))
	}
}
