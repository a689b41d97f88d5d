package safeurl

import "testing"

func TestIsHTTPOrHTTPS(t *testing.T) {
	tests := []struct {
		url   string
		allow bool
	}{
		{"http://example.com/", true},
		{"https://example.com/path", true},
		{"HTTP://x", true},
		{"HTTPS://x", true},
		{"https://", false},
		{"file:///etc/passwd", false},
		{"ftp://example.com", false},
		{"", false},
		{"not-a-url", false},
		{"javascript:alert(1)", false},
	}
	for _, tt := range tests {
		got := IsHTTPOrHTTPS(tt.url)
		if got != tt.allow {
			t.Errorf("IsHTTPOrHTTPS(%q) = %v, want %v", tt.url, got, tt.allow)
		}
		if err := Check(tt.url); (err == nil) != tt.allow {
			t.Errorf("Check(%q) = %v", tt.url, err)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("https://r1.googlevideo.com/videoplayback?sig=abc&expire=1"); got != "https://r1.googlevideo.com/videoplayback?[redacted]" {
		t.Errorf("Redact = %q", got)
	}
	if got := Redact("https://x/y"); got != "https://x/y" {
		t.Errorf("Redact without query = %q", got)
	}
}
