package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/snapetech/tubecache/internal/materializer"
)

type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// statusFor maps a failure category to its HTTP status. Caller-correctable
// faults are 4xx; everything else, including unknown categories, is 500.
func statusFor(code materializer.Code) int {
	switch code {
	case materializer.CodeInvalidRequest, materializer.CodeResolution:
		return http.StatusBadRequest
	case materializer.CodeStreamNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// detailFor is the client-visible message. Server-side failures get a fixed
// message per category so paths and upstream URLs never reach the client.
func detailFor(code materializer.Code, err error) string {
	switch code {
	case materializer.CodeInvalidRequest, materializer.CodeResolution, materializer.CodeStreamNotFound:
		var e *materializer.Error
		if errors.As(err, &e) {
			return e.Err.Error()
		}
		return err.Error()
	case materializer.CodeTransfer:
		return "failed to download media from upstream"
	case materializer.CodeAssembly:
		return "failed to assemble media"
	case materializer.CodeStore:
		return "failed to store media"
	case materializer.CodeCanceled:
		return "request canceled"
	default:
		return "internal error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := materializer.CodeOf(err)
	status := statusFor(code)
	if status >= 500 {
		log.Printf("http: %s %s failed code=%s err=%v", r.Method, r.URL.Path, code, err)
	}
	writeJSON(w, status, errorBody{Detail: detailFor(code, err), Code: string(code)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
