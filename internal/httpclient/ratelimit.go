package httpclient

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimitedTransport throttles response bodies; one limiter is shared by
// every request through the client, so the cap is process-wide per client.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = &rateLimitedReader{r: resp.Body, limiter: t.limiter, ctx: req.Context()}
	return resp, nil
}

type rateLimitedReader struct {
	r       io.ReadCloser
	limiter *rate.Limiter
	ctx     context.Context
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	if len(p) > r.limiter.Burst() {
		p = p[:r.limiter.Burst()]
	}
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.limiter.WaitN(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (r *rateLimitedReader) Close() error {
	return r.r.Close()
}
