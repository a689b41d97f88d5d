package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/snapetech/tubecache/internal/httpclient"
	"github.com/snapetech/tubecache/internal/safeurl"
)

// DefaultChunkSize is the Range request size used when chunked downloads are on.
const DefaultChunkSize = 10 << 20

var (
	// ErrShortTransfer is returned when fewer bytes arrive than the stream advertised.
	ErrShortTransfer = errors.New("short transfer")
	// ErrNotMedia is returned when upstream answers with a web page (consent,
	// bot challenge or error page) instead of media bytes.
	ErrNotMedia = errors.New("upstream returned a web page, not media")
)

// Download fetches d.URL to destPath. chunk <= 0 uses a single GET; otherwise
// Range requests of chunk bytes until the advertised total is reached. A server
// that answers the first Range request with 200 is read in one pass.
// Short transfers are judged against exact lengths only: d.Size or the
// Content-Range total, never d.SizeApprox.
func Download(ctx context.Context, client *http.Client, d Descriptor, destPath string, chunk int64) error {
	if err := safeurl.Check(d.URL); err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	var n int64
	want := d.Size
	if chunk <= 0 {
		n, err = downloadSingle(ctx, client, d, f)
	} else {
		n, want, err = downloadRange(ctx, client, d, f, chunk)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n == 0 || (want > 0 && n < want) {
		return fmt.Errorf("get %s: %w: got %d of %d bytes", safeurl.Redact(d.URL), ErrShortTransfer, n, want)
	}
	return nil
}

func newRequest(ctx context.Context, d Descriptor) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", httpclient.UserAgent)
	}
	return req, nil
}

func downloadSingle(ctx context.Context, client *http.Client, d Descriptor, w io.Writer) (int64, error) {
	req, err := newRequest(ctx, d)
	if err != nil {
		return 0, err
	}
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get %s: %s", safeurl.Redact(d.URL), resp.Status)
	}
	if err := checkMedia(resp, d.URL); err != nil {
		return 0, err
	}
	return io.Copy(w, resp.Body)
}

func downloadRange(ctx context.Context, client *http.Client, d Descriptor, w io.Writer, chunk int64) (int64, int64, error) {
	var off int64
	total := d.Size
	for total <= 0 || off < total {
		req, err := newRequest(ctx, d)
		if err != nil {
			return off, total, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+chunk-1))
		resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
		if err != nil {
			return off, total, err
		}
		switch {
		case resp.StatusCode == http.StatusOK && off == 0:
			if err := checkMedia(resp, d.URL); err != nil {
				resp.Body.Close()
				return 0, total, err
			}
			n, err := io.Copy(w, resp.Body)
			resp.Body.Close()
			return n, exactLength(resp, d), err
		case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && off > 0:
			resp.Body.Close()
			return off, total, nil
		case resp.StatusCode != http.StatusPartialContent:
			resp.Body.Close()
			return off, total, fmt.Errorf("get %s: %s", safeurl.Redact(d.URL), resp.Status)
		}
		if err := checkMedia(resp, d.URL); err != nil {
			resp.Body.Close()
			return off, total, err
		}
		if t := contentRangeTotal(resp.Header.Get("Content-Range")); t > 0 {
			total = t
		}
		n, err := io.Copy(w, resp.Body)
		resp.Body.Close()
		if err != nil {
			return off + n, total, err
		}
		off += n
		if n == 0 || (total <= 0 && n < chunk) {
			break
		}
	}
	return off, total, nil
}

// exactLength is the full length a 200 response promises, or d.Size.
func exactLength(resp *http.Response, d Descriptor) int64 {
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	return d.Size
}

// contentRangeTotal parses the complete length from "bytes a-b/total"; -1 if absent.
func contentRangeTotal(h string) int64 {
	i := strings.LastIndex(h, "/")
	if i < 0 {
		return -1
	}
	n, err := strconv.ParseInt(h[i+1:], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// checkMedia rejects HTML and JSON bodies by Content-Type.
func checkMedia(resp *http.Response, rawURL string) error {
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("get %s: %w (content-type %s)", safeurl.Redact(rawURL), ErrNotMedia, ct)
	}
	return nil
}
