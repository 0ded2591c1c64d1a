// Package store persists finished assessments and caches live feedback.
//
// [AssessmentStore] is the durable record of final assessments. It has an
// in-memory implementation ([MemStore]), a JSON-lines file implementation
// ([FileStore]), and a PostgreSQL implementation in the postgres
// sub-package. [LiveCache] holds the most recent interim feedback of each
// streaming session; [MemStore] implements it for single-process setups and
// the redis sub-package for shared deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/fluentia/pkg/types"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrMissingID is returned by Save when the record has no ID.
	ErrMissingID = errors.New("store: record has no id")
)

// Record is one persisted assessment together with the session that produced
// it. SessionID is empty for one-shot submissions.
type Record struct {
	SessionID string `json:"session_id,omitempty"`
	types.AssessmentResult
}

// AssessmentStore persists final assessments. Implementations must be safe
// for concurrent use.
type AssessmentStore interface {
	// Save stores rec. rec.ID must be set.
	Save(ctx context.Context, rec Record) error

	// Get returns the record with the given ID or [ErrNotFound].
	Get(ctx context.Context, id string) (Record, error)

	// ListBySession returns the records of a session, oldest first. An
	// unknown session yields an empty slice.
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
}

// LiveSnapshot is the latest interim state of a streaming session.
type LiveSnapshot struct {
	SessionID string                   `json:"session_id"`
	Target    string                   `json:"target"`
	Interim   string                   `json:"interim"`
	Feedback  []types.RealTimeFeedback `json:"feedback"`
	Progress  float64                  `json:"progress"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// LiveCache keeps the latest [LiveSnapshot] per session for dashboards and
// reconnecting clients. Entries may expire.
type LiveCache interface {
	PutLive(ctx context.Context, snap LiveSnapshot) error

	// Live returns the snapshot of a session or [ErrNotFound].
	Live(ctx context.Context, sessionID string) (LiveSnapshot, error)
}
