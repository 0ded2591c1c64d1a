// Package postgres is a PostgreSQL-backed [store.AssessmentStore].
//
// Scores are stored in plain columns so they can be aggregated with SQL;
// word assessments, feedback and suggestions are stored as JSONB.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/fluentia/internal/store"
)

// Schema is the SQL DDL for the assessments table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS assessments (
    id               TEXT PRIMARY KEY,
    session_id       TEXT NOT NULL DEFAULT '',
    language         TEXT NOT NULL DEFAULT '',
    original_text    TEXT NOT NULL,
    transcription    TEXT NOT NULL,
    overall_score    DOUBLE PRECISION NOT NULL,
    accuracy         DOUBLE PRECISION NOT NULL,
    fluency          DOUBLE PRECISION NOT NULL,
    completeness     DOUBLE PRECISION NOT NULL,
    prosody          DOUBLE PRECISION NOT NULL,
    word_assessments JSONB NOT NULL DEFAULT '[]',
    feedback         JSONB NOT NULL DEFAULT '[]',
    suggestions      JSONB NOT NULL DEFAULT '[]',
    source           TEXT NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_assessments_session ON assessments(session_id, created_at);
`

const selectColumns = `
	id, session_id, language, original_text, transcription,
	overall_score, accuracy, fluency, completeness, prosody,
	word_assessments, feedback, suggestions, source, created_at`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a [store.AssessmentStore] backed by PostgreSQL. All operations
// are safe for concurrent use when db is a pool.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

// Compile-time interface check.
var _ store.AssessmentStore = (*Store)(nil)

// New creates a [Store] on an existing connection or pool. The caller is
// responsible for calling [Store.Migrate].
func New(db DB) *Store {
	return &Store{db: db}
}

// Open connects a pool to dsn, pings it and applies [Schema].
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	s := &Store{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool opened by [Open]. It is a no-op for stores built
// with [New].
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate executes the [Schema] DDL.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Save inserts rec or replaces the record with the same ID.
func (s *Store) Save(ctx context.Context, rec store.Record) error {
	if rec.ID == "" {
		return store.ErrMissingID
	}
	wordsJSON, err := json.Marshal(emptySlice(rec.WordAssessments))
	if err != nil {
		return fmt.Errorf("postgres store: marshal word_assessments: %w", err)
	}
	fbJSON, err := json.Marshal(emptySlice(rec.Feedback))
	if err != nil {
		return fmt.Errorf("postgres store: marshal feedback: %w", err)
	}
	sugJSON, err := json.Marshal(emptySlice(rec.Suggestions))
	if err != nil {
		return fmt.Errorf("postgres store: marshal suggestions: %w", err)
	}

	const query = `
		INSERT INTO assessments (
			id, session_id, language, original_text, transcription,
			overall_score, accuracy, fluency, completeness, prosody,
			word_assessments, feedback, suggestions, source, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			language = EXCLUDED.language,
			original_text = EXCLUDED.original_text,
			transcription = EXCLUDED.transcription,
			overall_score = EXCLUDED.overall_score,
			accuracy = EXCLUDED.accuracy,
			fluency = EXCLUDED.fluency,
			completeness = EXCLUDED.completeness,
			prosody = EXCLUDED.prosody,
			word_assessments = EXCLUDED.word_assessments,
			feedback = EXCLUDED.feedback,
			suggestions = EXCLUDED.suggestions,
			source = EXCLUDED.source,
			created_at = EXCLUDED.created_at`

	_, err = s.db.Exec(ctx, query,
		rec.ID, rec.SessionID, rec.Language, rec.OriginalText, rec.Transcription,
		rec.OverallScore, rec.Accuracy, rec.Fluency, rec.Completeness, rec.Prosody,
		wordsJSON, fbJSON, sugJSON, rec.Source, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save %q: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a record by ID. It returns [store.ErrNotFound] if none
// exists.
func (s *Store) Get(ctx context.Context, id string) (store.Record, error) {
	query := `SELECT` + selectColumns + ` FROM assessments WHERE id = $1`

	rec, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("postgres store: get %q: %w", id, err)
	}
	return rec, nil
}

// ListBySession returns the records of a session, oldest first.
func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]store.Record, error) {
	query := `SELECT` + selectColumns + `
		FROM assessments
		WHERE session_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	defer rows.Close()

	recs := []store.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres store: list scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	return recs, nil
}

// scanRecord reads one row selected with selectColumns.
func scanRecord(row pgx.Row) (store.Record, error) {
	var (
		rec                        store.Record
		wordsJSON, fbJSON, sugJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.Language, &rec.OriginalText, &rec.Transcription,
		&rec.OverallScore, &rec.Accuracy, &rec.Fluency, &rec.Completeness, &rec.Prosody,
		&wordsJSON, &fbJSON, &sugJSON, &rec.Source, &rec.CreatedAt,
	)
	if err != nil {
		return store.Record{}, err
	}
	if err := json.Unmarshal(wordsJSON, &rec.WordAssessments); err != nil {
		return store.Record{}, fmt.Errorf("unmarshal word_assessments: %w", err)
	}
	if err := json.Unmarshal(fbJSON, &rec.Feedback); err != nil {
		return store.Record{}, fmt.Errorf("unmarshal feedback: %w", err)
	}
	if err := json.Unmarshal(sugJSON, &rec.Suggestions); err != nil {
		return store.Record{}, fmt.Errorf("unmarshal suggestions: %w", err)
	}
	return rec, nil
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice, so JSON
// marshalling produces "[]" instead of "null".
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
