// Package materializer turns a download request into a cached artifact: it
// derives the cache key, serves hits from the store, and on a miss resolves,
// stages, assembles and publishes the media exactly once per key at a time.
package materializer

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/snapetech/tubecache/internal/cache"
	"github.com/snapetech/tubecache/internal/metrics"
	"github.com/snapetech/tubecache/internal/muxer"
	"github.com/snapetech/tubecache/internal/probe"
	"github.com/snapetech/tubecache/internal/provider"
	"github.com/snapetech/tubecache/internal/store"
)

// Interface is the materialization entry point used by the HTTP boundary.
type Interface interface {
	// Materialize makes the artifact for req available in the store.
	// Errors are *Error; use CodeOf to classify them.
	Materialize(ctx context.Context, req Request) (Result, error)
}

// Request is the caller-supplied shape: remote reference, media kind and an
// optional quality hint.
type Request struct {
	URL     string
	Kind    string
	Quality string
}

// Result names the published artifact and how it was obtained.
type Result struct {
	Key    cache.Key
	Hit    bool // served from the store without any provider call
	Shared bool // the fill was shared with concurrent requests for the same key
}

// Inspector verifies a staged file before assembly.
type Inspector interface {
	Inspect(path string) (probe.Info, error)
}

// Pipeline implements Interface.
type Pipeline struct {
	Store      store.Store
	Provider   provider.StreamProvider
	Muxer      muxer.Muxer
	Inspector  Inspector // optional
	StagingDir string
	// Parallel stages the video and audio streams concurrently.
	Parallel bool
	Metrics  *metrics.Metrics // optional

	group singleflight.Group
	mu    sync.Mutex
	calls map[string]*call
}

// call tracks the callers waiting on one key's fill. The fill runs on ctx,
// which is detached from every caller and canceled when the last one leaves.
type call struct {
	ctx    context.Context
	cancel context.CancelFunc
	refs   int
}

var tracer = otel.Tracer("github.com/snapetech/tubecache/internal/materializer")

// Materialize serves a hit straight from the store; on a miss it joins or
// starts the single fill for the key and waits for it or for ctx.
func (p *Pipeline) Materialize(ctx context.Context, req Request) (Result, error) {
	key, err := cache.Derive(req.URL, req.Kind, req.Quality)
	if err != nil {
		p.Metrics.Failure(string(CodeInvalidRequest))
		return Result{}, &Error{Code: CodeInvalidRequest, Err: err}
	}
	k := key.String()
	ctx, span := tracer.Start(ctx, "materializer.Materialize", trace.WithAttributes(attribute.String("cache.key", k)))
	defer span.End()

	res := Result{Key: key}
	if p.Store.Exists(key) {
		res.Hit = true
		span.SetAttributes(attribute.Bool("cache.hit", true))
		p.Metrics.Lookup(string(key.Kind), true)
		log.Printf("materializer: hit key=%s", k)
		return res, nil
	}
	p.Metrics.Lookup(string(key.Kind), false)

	c := p.join(ctx, k)
	defer p.leave(k, c)
	ch := p.group.DoChan(k, func() (any, error) {
		return nil, p.fill(c.ctx, key)
	})
	select {
	case <-ctx.Done():
		log.Printf("materializer: caller gone key=%s err=%v", k, ctx.Err())
		return res, &Error{Code: CodeCanceled, Key: k, Err: ctx.Err()}
	case r := <-ch:
		res.Shared = r.Shared
		if r.Shared {
			p.Metrics.Shared()
		}
		if r.Err != nil {
			span.RecordError(r.Err)
			span.SetStatus(otelcodes.Error, string(CodeOf(r.Err)))
			return res, r.Err
		}
		return res, nil
	}
}

// Lookup derives the key for req and reports whether its artifact is stored.
// It never contacts the provider.
func (p *Pipeline) Lookup(req Request) (cache.Key, bool, error) {
	key, err := cache.Derive(req.URL, req.Kind, req.Quality)
	if err != nil {
		return cache.Key{}, false, &Error{Code: CodeInvalidRequest, Err: err}
	}
	return key, p.Store.Exists(key), nil
}

// Streams resolves ref and returns the video ID with every stream the provider offers.
func (p *Pipeline) Streams(ctx context.Context, ref string) (string, []provider.Descriptor, error) {
	id, err := cache.ExtractVideoID(ref)
	if err != nil {
		return "", nil, &Error{Code: CodeInvalidRequest, Err: err}
	}
	ds, err := p.Provider.Resolve(ctx, cache.WatchURL(id))
	if err != nil {
		return id, nil, fail(ctx, CodeResolution, id, err)
	}
	return id, ds, nil
}

func (p *Pipeline) join(ctx context.Context, k string) *call {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]*call)
	}
	c, ok := p.calls[k]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{ctx: fctx, cancel: cancel}
		p.calls[k] = c
	}
	c.refs++
	return c
}

// leave drops one waiter. The last waiter cancels the fill if it is still
// running and lets the next request for the key start a fresh one.
func (p *Pipeline) leave(k string, c *call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.refs--
	if c.refs > 0 {
		return
	}
	c.cancel()
	if p.calls[k] == c {
		delete(p.calls, k)
	}
	p.group.Forget(k)
}

func (p *Pipeline) fill(ctx context.Context, key cache.Key) (err error) {
	k := key.String()
	ctx, span := tracer.Start(ctx, "materializer.fill", trace.WithAttributes(attribute.String("cache.key", k)))
	defer span.End()
	defer p.Metrics.FillStarted()()
	defer func() {
		if err != nil {
			code := CodeOf(err)
			p.Metrics.Failure(string(code))
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, string(code))
			log.Printf("materializer: fill failed key=%s code=%s err=%v", k, code, err)
		}
	}()

	// A fill for this key may have published between the caller's check and now.
	if p.Store.Exists(key) {
		return nil
	}
	log.Printf("materializer: miss key=%s", k)

	start := time.Now()
	ds, err := p.Provider.Resolve(ctx, cache.WatchURL(key.VideoID))
	p.Metrics.ObserveStage("resolve", time.Since(start))
	if err != nil {
		return fail(ctx, CodeResolution, k, err)
	}
	sel, err := selectStreams(ds, key)
	if err != nil {
		return &Error{Code: CodeStreamNotFound, Key: k, Err: err}
	}
	log.Printf("materializer: selected key=%s video=%q audio=%q", k, sel.Video.ID, sel.Audio.ID)

	st, err := newStaging(p.StagingDir, k)
	if err != nil {
		return &Error{Code: CodeInternal, Key: k, Err: fmt.Errorf("staging: %w", err)}
	}
	defer st.release()

	audioPath := st.path("audio.m4a")
	if key.Kind == cache.KindAudio {
		if err := p.stage(ctx, k, "audio", sel.Audio, audioPath); err != nil {
			return err
		}
		return p.publish(key, audioPath)
	}

	videoPath := st.path("video.mp4")
	if err := p.stageBoth(ctx, k, sel, videoPath, audioPath); err != nil {
		return err
	}
	out := st.path(key.FileName())
	start = time.Now()
	if err := p.Muxer.Combine(ctx, videoPath, audioPath, out, muxer.MP4); err != nil {
		return fail(ctx, CodeAssembly, k, err)
	}
	p.Metrics.ObserveStage("mux", time.Since(start))
	log.Printf("materializer: muxed key=%s dur=%s", k, time.Since(start).Round(time.Millisecond))
	return p.publish(key, out)
}

func (p *Pipeline) stageBoth(ctx context.Context, k string, sel selection, videoPath, audioPath string) error {
	if !p.Parallel {
		if err := p.stage(ctx, k, "video", sel.Video, videoPath); err != nil {
			return err
		}
		return p.stage(ctx, k, "audio", sel.Audio, audioPath)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.stage(gctx, k, "video", sel.Video, videoPath) })
	g.Go(func() error { return p.stage(gctx, k, "audio", sel.Audio, audioPath) })
	return g.Wait()
}

// stage fetches d to path and, with an Inspector, checks that it carries the
// expected track.
func (p *Pipeline) stage(ctx context.Context, k, track string, d provider.Descriptor, path string) error {
	start := time.Now()
	if err := p.Provider.Fetch(ctx, d, path); err != nil {
		return fail(ctx, CodeTransfer, k, fmt.Errorf("fetch %s stream %s: %w", track, d.ID, err))
	}
	fi, err := os.Stat(path)
	if err != nil || fi.Size() == 0 {
		return &Error{Code: CodeTransfer, Key: k, Err: fmt.Errorf("fetch %s stream %s: nothing staged", track, d.ID)}
	}
	p.Metrics.Fetched(fi.Size())
	p.Metrics.ObserveStage("fetch", time.Since(start))
	log.Printf("materializer: staged key=%s track=%s stream=%s bytes=%d dur=%s", k, track, d.ID, fi.Size(), time.Since(start).Round(time.Millisecond))

	if p.Inspector == nil {
		return nil
	}
	info, err := p.Inspector.Inspect(path)
	if err != nil {
		return &Error{Code: CodeTransfer, Key: k, Err: fmt.Errorf("staged %s stream %s: %w", track, d.ID, err)}
	}
	if (track == "video" && !info.HasVideo) || (track == "audio" && !info.HasAudio) {
		return &Error{Code: CodeTransfer, Key: k, Err: fmt.Errorf("staged %s stream %s has no %s track", track, d.ID, track)}
	}
	return nil
}

func (p *Pipeline) publish(key cache.Key, src string) error {
	start := time.Now()
	if err := p.Store.Publish(key, src); err != nil {
		return &Error{Code: CodeStore, Key: key.String(), Err: err}
	}
	p.Metrics.ObserveStage("publish", time.Since(start))
	log.Printf("materializer: published key=%s", key)
	return nil
}
