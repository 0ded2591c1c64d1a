package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Compile-time assertions.
var (
	_ AssessmentStore = (*MemStore)(nil)
	_ LiveCache       = (*MemStore)(nil)
)

// MemStore is a thread-safe, in-memory [AssessmentStore] and [LiveCache].
// Live snapshots expire after the configured TTL. The zero value is ready to
// use and never expires snapshots.
type MemStore struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	records   map[string]Record
	bySession map[string][]string
	live      map[string]LiveSnapshot
}

// NewMemStore returns a [MemStore] whose live snapshots expire after ttl.
// A ttl of zero disables expiry.
func NewMemStore(ttl time.Duration) *MemStore {
	return &MemStore{ttl: ttl}
}

func (s *MemStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Save implements [AssessmentStore.Save]. Saving an existing ID replaces the
// record.
func (s *MemStore) Save(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records == nil {
		s.records = make(map[string]Record)
		s.bySession = make(map[string][]string)
	}
	if _, exists := s.records[rec.ID]; !exists && rec.SessionID != "" {
		s.bySession[rec.SessionID] = append(s.bySession[rec.SessionID], rec.ID)
	}
	s.records[rec.ID] = rec
	return nil
}

// Get implements [AssessmentStore.Get].
func (s *MemStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// ListBySession implements [AssessmentStore.ListBySession].
func (s *MemStore) ListBySession(_ context.Context, sessionID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySession[sessionID]
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// PutLive implements [LiveCache.PutLive].
func (s *MemStore) PutLive(_ context.Context, snap LiveSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.clock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live == nil {
		s.live = make(map[string]LiveSnapshot)
	}
	s.live[snap.SessionID] = snap
	return nil
}

// Live implements [LiveCache.Live].
func (s *MemStore) Live(_ context.Context, sessionID string) (LiveSnapshot, error) {
	s.mu.RLock()
	snap, ok := s.live[sessionID]
	s.mu.RUnlock()

	if !ok {
		return LiveSnapshot{}, ErrNotFound
	}
	if s.ttl > 0 && s.clock().Sub(snap.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.live, sessionID)
		s.mu.Unlock()
		return LiveSnapshot{}, ErrNotFound
	}
	return snap, nil
}
