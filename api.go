package domsnap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/domsnap/internal/shield"
)

// Handler exposes the service over HTTP. Malformed input is answered
// before any browser resource is allocated.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}
	r.Use(shield.BearerAuth(s.cfg.AuthTokenHash))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/screenshot", func(w http.ResponseWriter, r *http.Request) {
		var req CaptureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		img, err := s.Capture(r.Context(), &req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.Header().Set("Content-Type", img.Format.ContentType())
		w.WriteHeader(200)
		w.Write(img.Data)
	})

	r.Post("/pdf", func(w http.ResponseWriter, r *http.Request) {
		var req CaptureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		data, err := s.CapturePDF(r.Context(), &req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(200)
		w.Write(data)
	})

	r.Post("/screenshots/batch", func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if len(req.URLs) == 0 {
			writeError(w, 400, fmt.Errorf("%w: urls is required", ErrInvalidRequest))
			return
		}
		if len(req.URLs) > maxBatchURLs {
			writeError(w, 400, fmt.Errorf("%w: too many urls (max %d)", ErrInvalidRequest, maxBatchURLs))
			return
		}
		writeJSON(w, 200, map[string]any{"results": s.CaptureBatch(r.Context(), req.URLs)})
	})

	r.Get("/captures/recent", func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.Recent(r.Context(), queryInt(r, "limit", 20))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"captures": entries})
	})

	return r
}

// statusFor maps pipeline errors onto HTTP statuses: caller mistakes
// are 4xx, deadline blowouts 504, everything else 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return 400
	case errors.Is(err, ErrClosed):
		return 503
	case errors.Is(err, context.DeadlineExceeded):
		return 504
	default:
		return 500
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
