// Package api exposes the assessment engine over HTTP.
//
// JSON endpoints cover one-shot assessments, stored results, stateless
// interim matching and alignment. GET /v1/stream upgrades to a WebSocket
// that drives one [assessment.Session] per connection; see stream.go for
// the message protocol.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrWong99/fluentia/internal/assessment"
	"github.com/MrWong99/fluentia/internal/observe"
	"github.com/MrWong99/fluentia/internal/store"
	"github.com/MrWong99/fluentia/pkg/types"
)

const defaultMaxBodyBytes = 1 << 20

// Config wires the server to its collaborators. Assessor and Store are
// required.
type Config struct {
	Assessor *assessment.Assessor
	Store    store.AssessmentStore

	// StoreName labels store error metrics, e.g. "postgres".
	StoreName string

	// Live caches interim snapshots of streaming sessions. Nil disables
	// GET /v1/sessions/{id}/feedback.
	Live     store.LiveCache
	LiveName string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// MaxBodyBytes limits JSON request bodies and WebSocket messages.
	// Default: 1 MiB.
	MaxBodyBytes int64

	// OriginPatterns lists extra hosts allowed to open the stream from a
	// browser. Same-origin requests are always accepted.
	OriginPatterns []string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Server serves the HTTP API. It is safe for concurrent use.
type Server struct {
	cfg Config
}

// New validates cfg and returns a [Server].
func New(cfg Config) (*Server, error) {
	if cfg.Assessor == nil {
		return nil, errors.New("api: assessor is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("api: store is required")
	}
	if cfg.StoreName == "" {
		cfg.StoreName = "store"
	}
	if cfg.LiveName == "" {
		cfg.LiveName = "live"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{cfg: cfg}, nil
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/assessments", s.createAssessment)
	mux.HandleFunc("GET /v1/assessments/{id}", s.getAssessment)
	mux.HandleFunc("GET /v1/sessions/{id}/assessments", s.listSessionAssessments)
	mux.HandleFunc("GET /v1/sessions/{id}/feedback", s.sessionFeedback)
	mux.HandleFunc("POST /v1/interim", s.interim)
	mux.HandleFunc("POST /v1/align", s.align)
	mux.HandleFunc("GET /v1/stream", s.stream)
}

// save persists a finished assessment. Failures are logged and counted; the
// learner still receives the result.
func (s *Server) save(ctx context.Context, sessionID string, r *types.AssessmentResult) {
	if err := s.cfg.Store.Save(ctx, store.Record{SessionID: sessionID, AssessmentResult: *r}); err != nil {
		s.cfg.Metrics.RecordStoreError(ctx, s.cfg.StoreName, "save")
		observe.Logger(ctx).Error("failed to persist assessment", "id", r.ID, "err", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorBody{Error: fmt.Sprintf(format, args...)})
}

// decode reads a size-limited JSON body into v, rejecting unknown fields.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: %v", err)
		return false
	}
	return true
}
