package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Compile-time interface check.
var _ AssessmentStore = (*FileStore)(nil)

// maxLineSize bounds a single JSON line when reading the file back.
const maxLineSize = 1 << 20

// FileStore persists assessments as append-only JSON lines in a local file.
// It suits single-node deployments and small classrooms; reads scan the whole
// file. A record saved twice is returned in its latest version.
//
// Thread-safe for concurrent use within one process.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that writes to path. The file is created
// on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Save implements [AssessmentStore.Save].
func (s *FileStore) Save(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrMissingID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("store: create directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	return nil
}

// Get implements [AssessmentStore.Get].
func (s *FileStore) Get(_ context.Context, id string) (Record, error) {
	var (
		found Record
		ok    bool
	)
	err := s.scan(func(rec Record) {
		if rec.ID == id {
			found, ok = rec, true
		}
	})
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrNotFound
	}
	return found, nil
}

// ListBySession implements [AssessmentStore.ListBySession]. Records are
// returned in file order, which is save order.
func (s *FileStore) ListBySession(_ context.Context, sessionID string) ([]Record, error) {
	var (
		out []Record
		idx = make(map[string]int)
	)
	err := s.scan(func(rec Record) {
		if rec.SessionID != sessionID {
			return
		}
		if i, seen := idx[rec.ID]; seen {
			out[i] = rec
			return
		}
		idx[rec.ID] = len(out)
		out = append(out, rec)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// scan calls fn for every record in the file. A missing file holds no
// records.
func (s *FileStore) scan(fn func(Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("store: open file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return fmt.Errorf("store: %s line %d: %w", s.path, line, err)
		}
		fn(rec)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("store: read %s: %w", s.path, err)
	}
	return nil
}
