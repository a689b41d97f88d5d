package cache

import (
	"errors"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/abcdefghijk", "abcdefghijk"},
		{"https://www.youtube.com/embed/a-b_c-d_e-f", "a-b_c-d_e-f"},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		got, err := ExtractVideoID(tt.ref)
		if err != nil {
			t.Errorf("ExtractVideoID(%q): %v", tt.ref, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestExtractVideoID_invalid(t *testing.T) {
	for _, ref := range []string{
		"",
		"not a url",
		"https://example.com/video",
		"https://www.youtube.com/watch?v=short",
		"file:///etc/passwd",
		"ftp://youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=../../etc",
	} {
		if _, err := ExtractVideoID(ref); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("ExtractVideoID(%q) err = %v, want ErrInvalidIdentifier", ref, err)
		}
	}
}

func TestDerive_stable(t *testing.T) {
	k1, err := Derive("https://youtu.be/dQw4w9WgXcQ", "video", "720p")
	if err != nil {
		t.Fatal(err)
	}
	k2, err := Derive("https://www.youtube.com/watch?v=dQw4w9WgXcQ", "video", "720p")
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Errorf("Derive should be stable: %v vs %v", k1, k2)
	}
	if k1.FileName() != "dQw4w9WgXcQ_video_720p.mp4" {
		t.Errorf("FileName = %q", k1.FileName())
	}
}

func TestDerive_defaultQuality(t *testing.T) {
	a, _ := Derive("dQw4w9WgXcQ", "audio", "")
	b, _ := Derive("dQw4w9WgXcQ", "audio", "default")
	if a != b {
		t.Errorf("absent and explicit default should collide: %v vs %v", a, b)
	}
	if !a.AnyQuality() {
		t.Error("AnyQuality should be true")
	}
	if a.String() != "dQw4w9WgXcQ_audio_default" {
		t.Errorf("String = %q", a.String())
	}
}

func TestDerive_distinctPairs(t *testing.T) {
	seen := map[string]string{}
	for _, kind := range []string{"video", "audio"} {
		for _, q := range []string{"", "144p", "360p", "720p", "1080p", "1080p60"} {
			k, err := Derive("dQw4w9WgXcQ", kind, q)
			if err != nil {
				t.Fatalf("Derive(%s, %q): %v", kind, q, err)
			}
			pair := kind + "/" + q
			if prev, ok := seen[k.String()]; ok {
				t.Errorf("collision: %s and %s both map to %s", prev, pair, k)
			}
			seen[k.String()] = pair
		}
	}
}

func TestDerive_invalid(t *testing.T) {
	if _, err := Derive("dQw4w9WgXcQ", "subtitle", ""); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("kind subtitle: err = %v", err)
	}
	if _, err := Derive("https://example.com/", "video", ""); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("bad ref: err = %v", err)
	}
	if _, err := Derive("dQw4w9WgXcQ", "video", "../720p"); !errors.Is(err, ErrInvalidQuality) {
		t.Errorf("bad quality: err = %v", err)
	}
}

func TestWatchURL_roundTrip(t *testing.T) {
	id, err := ExtractVideoID(WatchURL("dQw4w9WgXcQ"))
	if err != nil || id != "dQw4w9WgXcQ" {
		t.Fatalf("ExtractVideoID(WatchURL) = %q, %v", id, err)
	}
}
