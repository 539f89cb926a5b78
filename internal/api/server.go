// Package api exposes the incident pipeline over HTTP
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/incidentlens/internal/cache"
	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/ppiankov/incidentlens/internal/pipeline"
	"github.com/ppiankov/incidentlens/internal/worker"
)

const maxBodyBytes = 1 << 20

// Options configures optional server collaborators. Zero values disable
// caching and rate limiting.
type Options struct {
	Cache   cache.Cache
	Limiter *worker.Limiter
}

// Server serves the incident endpoints
type Server struct {
	pipeline *pipeline.Pipeline
	cache    cache.Cache
	limiter  *worker.Limiter
}

// NewServer creates a server over p
func NewServer(p *pipeline.Pipeline, opts Options) *Server {
	return &Server{
		pipeline: p,
		cache:    opts.Cache,
		limiter:  opts.Limiter,
	}
}

// Routes returns the HTTP handler with all middleware applied
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/columns", s.handleColumns)
	mux.HandleFunc("/unique-values", s.handleUniqueValues)
	mux.HandleFunc("/filter", s.handleFilter)
	mux.HandleFunc("/ai-interpret-filters", s.handleInterpret)
	mux.HandleFunc("/", s.handleNotFound)
	return withRequestID(withLogging(withCORS(mux)))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	h := s.pipeline.Health()
	h.RateLimitedClients = s.limiter.Len()
	status := http.StatusOK
	if !h.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeCached(w, cache.Key("columns"), func() (any, error) {
		columns, err := s.pipeline.Columns()
		if err != nil {
			return nil, err
		}
		return map[string]any{"columns": columns}, nil
	})
}

func (s *Server) handleUniqueValues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	column := r.URL.Query().Get("column")
	s.writeCached(w, cache.Key("unique-values", model.ColumnKey(column)), func() (any, error) {
		values, err := s.pipeline.UniqueValues(column)
		if err != nil {
			return nil, err
		}
		return map[string]any{"values": values}, nil
	})
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req model.FilterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if s.pipeline.RequestsAnalysis(req) && !s.allow(r) {
		writeRateLimited(w)
		return
	}

	resp, err := s.pipeline.Filter(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type interpretRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleInterpret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req interpretRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if !s.allow(r) {
		writeRateLimited(w)
		return
	}

	res, err := s.pipeline.Interpret(r.Context(), req.Prompt)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !res.OK() {
		writeJSON(w, statusFor(res.Err), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": fmt.Sprintf("no route for %s", r.URL.Path),
	})
}

// writeCached serves an encoded GET response from the cache, building it
// with build on a miss. Errors are never cached.
func (s *Server) writeCached(w http.ResponseWriter, key string, build func() (any, error)) {
	body, hit, err := cache.Fetch(s.cache, key, cache.NoExpiration, func() ([]byte, error) {
		v, err := build()
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	if s.cache != nil {
		if hit {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// decodeJSON decodes a request body into v. An empty body leaves v at its
// zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &bodyTooLargeError{limit: tooLarge.Limit}
		}
		return &model.RequestError{Message: "invalid JSON: " + strings.TrimPrefix(err.Error(), "json: ")}
	}
}
