package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrWong99/fluentia/internal/assessment"
	"github.com/MrWong99/fluentia/internal/observe"
	"github.com/MrWong99/fluentia/internal/store"
	"github.com/MrWong99/fluentia/internal/transcript/align"
	"github.com/MrWong99/fluentia/internal/transcript/normalize"
	"github.com/MrWong99/fluentia/internal/transcript/realtime"
	"github.com/MrWong99/fluentia/internal/transcript/timing"
	"github.com/MrWong99/fluentia/pkg/types"
)

// wordTiming is a recogniser word with offsets from the start of the
// recording. EndMS is optional.
type wordTiming struct {
	Word    string `json:"word"`
	StartMS int64  `json:"start_ms"`
	EndMS   *int64 `json:"end_ms,omitempty"`
}

type assessmentRequest struct {
	OriginalText string       `json:"original_text"`
	Transcript   string       `json:"transcript"`
	Language     string       `json:"language,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
	WordTimings  []wordTiming `json:"word_timings,omitempty"`
}

// timingStats replays word timings into a timing log. It returns nil when no
// timings were sent.
func timingStats(words []wordTiming) (*types.TimingStats, error) {
	if len(words) == 0 {
		return nil, nil
	}
	var (
		log  timing.Log
		base = time.Unix(0, 0).UTC()
		last int64
	)
	log.Start(base)
	for i, w := range words {
		if w.StartMS < 0 || w.StartMS < last {
			return nil, fmt.Errorf("word_timings[%d].start_ms must be non-negative and not before the previous word", i)
		}
		last = w.StartMS
		start := base.Add(time.Duration(w.StartMS) * time.Millisecond)
		if w.EndMS == nil {
			log.Record(w.Word, start)
			continue
		}
		if *w.EndMS < w.StartMS {
			return nil, fmt.Errorf("word_timings[%d].end_ms is before start_ms", i)
		}
		log.RecordSpan(w.Word, start, base.Add(time.Duration(*w.EndMS)*time.Millisecond))
	}
	return log.Stats(), nil
}

func (s *Server) createAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	stats, err := timingStats(req.WordTimings)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	res := s.cfg.Assessor.Assess(r.Context(), assessment.Submission{
		OriginalText: req.OriginalText,
		Transcript:   req.Transcript,
		Language:     req.Language,
		Timing:       stats,
	})
	s.save(r.Context(), req.SessionID, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.cfg.Store.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "assessment %q not found", id)
	case err != nil:
		s.storeFailure(w, r, "get", err)
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) listSessionAssessments(w http.ResponseWriter, r *http.Request) {
	recs, err := s.cfg.Store.ListBySession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeFailure(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) sessionFeedback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.cfg.Live == nil {
		writeError(w, http.StatusNotFound, "live feedback for session %q not found", id)
		return
	}
	snap, err := s.cfg.Live.Live(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "live feedback for session %q not found", id)
	case err != nil:
		s.cfg.Metrics.RecordStoreError(r.Context(), s.cfg.LiveName, "get")
		observe.Logger(r.Context()).Error("live cache lookup failed", "session_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "live feedback unavailable")
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.cfg.Metrics.RecordStoreError(r.Context(), s.cfg.StoreName, op)
	observe.Logger(r.Context()).Error("assessment store failed", "op", op, "err", err)
	writeError(w, http.StatusInternalServerError, "assessment store unavailable")
}

type interimRequest struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

type interimResponse struct {
	Feedback []types.RealTimeFeedback `json:"feedback"`
	Progress float64                  `json:"progress"`
}

func (s *Server) interim(w http.ResponseWriter, r *http.Request) {
	var req interimRequest
	if !s.decode(w, r, &req) {
		return
	}
	start := time.Now()
	fb := realtime.Match(normalize.Tokens(req.Target), req.Text)
	s.cfg.Metrics.InterimMatchDuration.Record(r.Context(), time.Since(start).Seconds())
	if fb == nil {
		fb = []types.RealTimeFeedback{}
	}
	writeJSON(w, http.StatusOK, interimResponse{
		Feedback: fb,
		Progress: realtime.Summarize(fb).Progress(),
	})
}

type alignRequest struct {
	Target string `json:"target"`
	Spoken string `json:"spoken"`
}

type alignResponse struct {
	Results     []types.WordComparisonResult `json:"results"`
	Correct     int                          `json:"correct"`
	TargetWords int                          `json:"target_words"`
	SpokenWords int                          `json:"spoken_words"`
	Ratio       float64                      `json:"ratio"`
}

func (s *Server) align(w http.ResponseWriter, r *http.Request) {
	var req alignRequest
	if !s.decode(w, r, &req) {
		return
	}
	a := align.Final(normalize.Tokens(req.Target), normalize.Tokens(req.Spoken))
	res := a.Results
	if res == nil {
		res = []types.WordComparisonResult{}
	}
	writeJSON(w, http.StatusOK, alignResponse{
		Results:     res,
		Correct:     a.Correct,
		TargetWords: a.TargetWords,
		SpokenWords: a.SpokenWords,
		Ratio:       a.Ratio(),
	})
}
