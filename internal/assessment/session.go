package assessment

import (
	"context"
	"time"

	"github.com/MrWong99/fluentia/internal/observe"
	"github.com/MrWong99/fluentia/internal/transcript/normalize"
	"github.com/MrWong99/fluentia/internal/transcript/phonetic"
	"github.com/MrWong99/fluentia/internal/transcript/realtime"
	"github.com/MrWong99/fluentia/internal/transcript/timing"
	"github.com/MrWong99/fluentia/pkg/types"
)

// Session is the state of one recording: the target sentence, the word
// timing log and the latest interim feedback.
//
// A Session is not safe for concurrent use. It belongs to the goroutine that
// feeds it recogniser output, typically one WebSocket connection.
type Session struct {
	id       string
	language string
	target   string
	tokens   []types.Token

	assessor *Assessor
	scorer   *phonetic.Scorer
	metrics  *observe.Metrics

	log      timing.Log
	interim  string
	feedback []types.RealTimeFeedback
}

// NewSession creates a session for reading target aloud. Final transcripts
// are scored by assessor.
func NewSession(id, target, language string, assessor *Assessor) *Session {
	s := &Session{
		id:       id,
		language: language,
		assessor: assessor,
		scorer:   phonetic.Word,
		metrics:  assessor.metrics,
	}
	s.setTarget(target)
	return s
}

func (s *Session) setTarget(target string) {
	s.target = target
	s.tokens = normalize.Tokens(target)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Target returns the sentence the speaker is reading.
func (s *Session) Target() string { return s.target }

// Language returns the session language tag.
func (s *Session) Language() string { return s.language }

// Start begins a recording at now. Timing and interim state are cleared.
func (s *Session) Start(now time.Time) {
	s.Reset()
	s.log.Start(now)
}

// Reset discards timing and interim state. The target is kept.
func (s *Session) Reset() {
	s.log.Reset()
	s.interim = ""
	s.feedback = nil
}

// Interim scores the current interim transcript. text replaces any previous
// interim transcript; callers send the full text every time.
func (s *Session) Interim(ctx context.Context, text string) []types.RealTimeFeedback {
	start := time.Now()
	s.interim = text
	s.feedback = realtime.MatchTokens(s.scorer, s.tokens, normalize.Tokens(text))
	s.metrics.InterimMatchDuration.Record(ctx, time.Since(start).Seconds())
	return s.feedback
}

// Feedback returns the feedback of the latest interim transcript.
func (s *Session) Feedback() []types.RealTimeFeedback { return s.feedback }

// Progress returns the share of target words already claimed by the latest
// interim transcript.
func (s *Session) Progress() float64 {
	return realtime.Summarize(s.feedback).Progress()
}

// Word records the arrival of a recognised word.
func (s *Session) Word(word string, ts time.Time) { s.log.Record(word, ts) }

// WordSpan records a recognised word with explicit start and end times.
func (s *Session) WordSpan(word string, start, end time.Time) {
	s.log.RecordSpan(word, start, end)
}

// Timings returns a copy of the recorded word timings.
func (s *Session) Timings() []types.SpeechTiming { return s.log.Entries() }

// Overall composes the streaming overall feedback for transcript using the
// timing recorded so far. An empty transcript falls back to the latest
// interim text.
func (s *Session) Overall(transcript string) OverallFeedback {
	if transcript == "" {
		transcript = s.interim
	}
	return s.assessor.Composer().Overall(s.target, transcript, s.log.Speed(), s.log.Pauses())
}

// Finish scores the final transcript through the assessor chain. An empty
// final falls back to the latest interim text, so stopping early assesses
// whatever was heard.
func (s *Session) Finish(ctx context.Context, final string) *types.AssessmentResult {
	if final == "" {
		final = s.interim
	}
	return s.assessor.Assess(ctx, Submission{
		OriginalText: s.target,
		Transcript:   final,
		Language:     s.language,
		Timing:       s.log.Stats(),
	})
}
