package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/fluentia/internal/assessment"
	"github.com/MrWong99/fluentia/internal/observe"
	"github.com/MrWong99/fluentia/internal/store"
	"github.com/MrWong99/fluentia/pkg/types"
)

type testEnv struct {
	srv   *httptest.Server
	store *store.MemStore
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	mem := store.NewMemStore(time.Minute)
	cfg := Config{
		Assessor: assessment.NewAssessor(assessment.NewComposer(), assessment.AssessorConfig{}, assessment.WithMetrics(m)),
		Store:    mem,
		Live:     mem,
		Metrics:  m,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mux := http.NewServeMux()
	s.Register(mux)
	srv := httptest.NewServer(observe.Middleware(m)(mux))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: mem}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Store: store.NewMemStore(0)}); err == nil {
		t.Error("expected error without assessor")
	}
	a := assessment.NewAssessor(assessment.NewComposer(), assessment.AssessorConfig{})
	if _, err := New(Config{Assessor: a}); err == nil {
		t.Error("expected error without store")
	}
}

func TestCreateAssessment_RoundTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	var res types.AssessmentResult
	code := env.do(t, "POST", "/v1/assessments", assessmentRequest{
		OriginalText: "I like to eat rice",
		Transcript:   "I like to eat rice",
		SessionID:    "s-1",
	}, &res)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if res.Source != assessment.SourceLocal || res.Accuracy != 100 || res.ID == "" {
		t.Fatalf("result = %+v", res)
	}

	var rec store.Record
	if code := env.do(t, "GET", "/v1/assessments/"+res.ID, nil, &rec); code != http.StatusOK {
		t.Fatalf("GET status = %d", code)
	}
	if rec.SessionID != "s-1" || rec.OverallScore != res.OverallScore {
		t.Errorf("stored record = %+v", rec)
	}

	var list []store.Record
	if code := env.do(t, "GET", "/v1/sessions/s-1/assessments", nil, &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list) != 1 || list[0].ID != res.ID {
		t.Errorf("list = %+v", list)
	}

	var empty []store.Record
	if code := env.do(t, "GET", "/v1/sessions/unknown/assessments", nil, &empty); code != http.StatusOK || empty == nil || len(empty) != 0 {
		t.Errorf("unknown session: status %d, list %v", code, empty)
	}
}

func TestCreateAssessment_WordTimings(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	end := func(ms int64) *int64 { return &ms }
	tests := []struct {
		name     string
		timings  []wordTiming
		wantCode int
	}{
		{name: "arrival times", timings: []wordTiming{{Word: "good", StartMS: 0}, {Word: "morning", StartMS: 400}}, wantCode: http.StatusOK},
		{name: "spans", timings: []wordTiming{{Word: "good", StartMS: 0, EndMS: end(300)}, {Word: "morning", StartMS: 2000, EndMS: end(2400)}}, wantCode: http.StatusOK},
		{name: "out of order", timings: []wordTiming{{Word: "good", StartMS: 500}, {Word: "morning", StartMS: 100}}, wantCode: http.StatusBadRequest},
		{name: "negative start", timings: []wordTiming{{Word: "good", StartMS: -1}}, wantCode: http.StatusBadRequest},
		{name: "end before start", timings: []wordTiming{{Word: "good", StartMS: 500, EndMS: end(100)}}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code := env.do(t, "POST", "/v1/assessments", assessmentRequest{
				OriginalText: "good morning",
				Transcript:   "good morning",
				WordTimings:  tt.timings,
			}, nil)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestTimingStats_LongPause(t *testing.T) {
	t.Parallel()

	end := func(ms int64) *int64 { return &ms }
	stats, err := timingStats([]wordTiming{
		{Word: "good", StartMS: 0, EndMS: end(300)},
		{Word: "morning", StartMS: 2300, EndMS: end(2700)},
	})
	if err != nil {
		t.Fatalf("timingStats: %v", err)
	}
	if stats.Pauses.Count != 1 || stats.Pauses.Class != types.PauseLong {
		t.Errorf("Pauses = %+v, want one long pause", stats.Pauses)
	}
	if s, _ := timingStats(nil); s != nil {
		t.Errorf("timingStats(nil) = %+v, want nil", s)
	}
}

func TestBadRequests(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(c *Config) { c.MaxBodyBytes = 64 })

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{name: "malformed json", path: "/v1/assessments", body: "{", wantCode: http.StatusBadRequest},
		{name: "unknown field", path: "/v1/interim", body: `{"target":"a","txt":"a"}`, wantCode: http.StatusBadRequest},
		{name: "too large", path: "/v1/align", body: `{"target":"` + string(bytes.Repeat([]byte("a"), 100)) + `"}`, wantCode: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var body errorBody
			if code := env.do(t, "POST", tt.path, tt.body, &body); code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			if body.Error == "" {
				t.Error("error body is empty")
			}
		})
	}
}

func TestGetAssessment_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	var body errorBody
	if code := env.do(t, "GET", "/v1/assessments/missing", nil, &body); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

type brokenStore struct{ store.MemStore }

func (*brokenStore) Get(context.Context, string) (store.Record, error) {
	return store.Record{}, errors.New("connection reset")
}

func (*brokenStore) Save(context.Context, store.Record) error { return errors.New("disk full") }

func TestStoreFailures(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(c *Config) { c.Store = &brokenStore{} })

	var res types.AssessmentResult
	if code := env.do(t, "POST", "/v1/assessments", assessmentRequest{OriginalText: "hi", Transcript: "hi"}, &res); code != http.StatusOK {
		t.Errorf("save failure must not fail the request, status = %d", code)
	}
	if res.ID == "" {
		t.Error("result missing despite save failure")
	}

	var body errorBody
	if code := env.do(t, "GET", "/v1/assessments/x", nil, &body); code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
}

func TestInterim(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	var res interimResponse
	if code := env.do(t, "POST", "/v1/interim", interimRequest{Target: "I like to eat rice", Text: "I like"}, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(res.Feedback) != 5 {
		t.Fatalf("got %d feedback entries, want 5", len(res.Feedback))
	}
	if res.Feedback[0].Status != types.StatusCorrect {
		t.Errorf("first entry = %+v, want correct", res.Feedback[0])
	}
	if res.Progress != 0.4 {
		t.Errorf("Progress = %v, want 0.4", res.Progress)
	}

	var empty interimResponse
	env.do(t, "POST", "/v1/interim", interimRequest{}, &empty)
	if empty.Feedback == nil {
		t.Error("empty input must yield an empty list, not null")
	}
}

func TestAlign(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	var res alignResponse
	if code := env.do(t, "POST", "/v1/align", alignRequest{Target: "apple banana cherry", Spoken: "apple cherry"}, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.Correct != 2 || len(res.Results) != 3 || res.TargetWords != 3 || res.SpokenWords != 2 {
		t.Errorf("alignment = %+v", res)
	}
	if res.Ratio < 0.66 || res.Ratio > 0.67 {
		t.Errorf("Ratio = %v, want 2/3", res.Ratio)
	}
}

func TestSessionFeedback_NoLiveCache(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(c *Config) { c.Live = nil })

	var body errorBody
	if code := env.do(t, "GET", "/v1/sessions/abc/feedback", nil, &body); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}
