package main

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/njchilds90/gonewton/tool"
)

const requestIDHeader = "X-Request-Id"

type server struct {
	handler      *tool.Handler
	logger       *zap.Logger
	maxBodyBytes int64
	now          func() time.Time
}

func newServer(h *tool.Handler, logger *zap.Logger, maxBodyBytes int64) *server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &server{handler: h, logger: logger, maxBodyBytes: maxBodyBytes, now: time.Now}
}

// routes returns the mux wrapped in request-ID and logging middleware.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tool", s.handleTool)
	mux.HandleFunc("/schema", s.handleSchema)
	mux.HandleFunc("/health", s.handleHealth)
	return s.withRequestID(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := s.now()
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", s.now().Sub(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /tool
func (s *server) handleTool(w http.ResponseWriter, r *http.Request) {
	id := w.Header().Get(requestIDHeader)
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic in /tool",
				zap.String("request_id", id),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req tool.ToolRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if dec.More() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: trailing data"})
		return
	}

	resp := s.handler.Handle(r.Context(), req)
	if resp.Error != "" {
		s.logger.Debug("tool error",
			zap.String("request_id", id),
			zap.String("tool", req.Tool),
			zap.String("error", resp.Error),
		)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /schema
func (s *server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tool.ToolSpec())
}

// GET /health
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}
