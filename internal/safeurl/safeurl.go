// Package safeurl guards outbound fetches against non-HTTP schemes.
package safeurl

import (
	"errors"
	"net/url"
	"strings"
)

// ErrScheme is returned by Check for URLs that are not http or https.
var ErrScheme = errors.New("url scheme must be http or https")

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https and a host.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return (s == "http" || s == "https") && parsed.Host != ""
}

// Check returns ErrScheme unless u is an http(s) URL.
func Check(u string) error {
	if !IsHTTPOrHTTPS(u) {
		return ErrScheme
	}
	return nil
}

// Redact strips the query string, which for signed media URLs carries tokens.
func Redact(s string) string {
	if i := strings.Index(s, "?"); i >= 0 {
		return s[:i] + "?[redacted]"
	}
	return s
}
