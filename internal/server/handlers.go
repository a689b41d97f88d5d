package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/snapetech/tubecache/internal/cache"
	"github.com/snapetech/tubecache/internal/materializer"
	"github.com/snapetech/tubecache/internal/provider"
	"github.com/snapetech/tubecache/internal/store"
)

const artifactContentType = "video/mp4"

func (s *Server) serveRoot() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeJSON(w, http.StatusNotFound, errorBody{Detail: "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "tube-cache is running"})
	})
}

// serveDownload handles GET/HEAD /download?url=&formato=&resolucao=.
// GET materializes on a miss; HEAD only reports what is already stored.
func (s *Server) serveDownload() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "method not allowed"})
			return
		}
		q := r.URL.Query()
		req := materializer.Request{URL: q.Get("url"), Kind: q.Get("formato"), Quality: q.Get("resolucao")}

		if r.Method == http.MethodHead {
			key, ok, err := s.Pipeline.Lookup(req)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			s.serveArtifact(w, r, key, true)
			return
		}

		res, err := s.Pipeline.Materialize(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.serveArtifact(w, r, res.Key, res.Hit)
	})
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, key cache.Key, hit bool) {
	a, err := s.Store.Open(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = &materializer.Error{Code: materializer.CodeStore, Key: key.String(), Err: err}
		}
		writeError(w, r, err)
		return
	}
	defer a.Close()
	h := w.Header()
	h.Set("Content-Type", artifactContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	if hit {
		h.Set("X-Cache", "HIT")
	} else {
		h.Set("X-Cache", "MISS")
	}
	http.ServeContent(w, r, a.Name, a.ModTime, a)
}

type streamJSON struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Codecs   string `json:"codecs,omitempty"`
	Kind     string `json:"kind"`
	Quality  string `json:"quality,omitempty"`
	Bitrate  int64  `json:"bitrate,omitempty"`
	Size     int64  `json:"size,omitempty"`
	// SizeApprox is set when only an estimate is known.
	SizeApprox int64 `json:"size_approx,omitempty"`
}

type streamsResponse struct {
	VideoID string `json:"video_id"`
	// Qualities are the resolucao values /download accepts for formato=video.
	Qualities []string     `json:"qualities"`
	Audio     bool         `json:"audio"`
	Streams   []streamJSON `json:"streams"`
}

// serveStreams handles GET /streams?url=, listing what the provider offers.
// Stream URLs are signed and short-lived and are not returned.
func (s *Server) serveStreams() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "method not allowed"})
			return
		}
		id, ds, err := s.Pipeline.Streams(r.Context(), r.URL.Query().Get("url"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeEncoded(w, r, http.StatusOK, buildStreamsResponse(id, ds))
	})
}

func buildStreamsResponse(id string, ds []provider.Descriptor) streamsResponse {
	resp := streamsResponse{VideoID: id, Qualities: []string{}, Streams: make([]streamJSON, 0, len(ds))}
	for _, d := range ds {
		resp.Streams = append(resp.Streams, streamJSON{
			ID:         d.ID,
			MimeType:   d.MimeType,
			Codecs:     d.Codecs,
			Kind:       d.Kind.String(),
			Quality:    d.Quality,
			Bitrate:    d.Bitrate,
			Size:       d.Size,
			SizeApprox: d.SizeApprox,
		})
		switch {
		case d.Kind == provider.VideoOnly && d.MimeType == "video/mp4" && d.Quality != "":
			if !slices.Contains(resp.Qualities, d.Quality) {
				resp.Qualities = append(resp.Qualities, d.Quality)
			}
		case d.Kind == provider.AudioOnly && d.MimeType == "audio/mp4":
			resp.Audio = true
		}
	}
	return resp
}

// writeEncoded writes v as JSON, brotli-compressed when the client accepts br.
func writeEncoded(w http.ResponseWriter, r *http.Request, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Add("Vary", "Accept-Encoding")
	if !acceptsBrotli(r.Header.Get("Accept-Encoding")) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
		return
	}
	h.Set("Content-Encoding", "br")
	w.WriteHeader(status)
	bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
	_ = json.NewEncoder(bw).Encode(v)
	_ = bw.Close()
}

func acceptsBrotli(header string) bool {
	for _, part := range strings.Split(header, ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(enc), "br") {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) serveHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Ready != nil {
			if err := s.Ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
}
