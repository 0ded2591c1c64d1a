// Package types defines the shared data model of the fluentia assessment
// engine. These types flow between the transcript packages, the assessment
// composer, the persistence layer, and the HTTP/WebSocket API.
//
// Values produced by the engine are treated as immutable once returned: a new
// feedback list is built for every interim update and an [AssessmentResult]
// is constructed once per submission.
package types

import "time"

// Token is a normalised word: lowercase, punctuation stripped, contractions
// expanded. Tokens are produced by the normalize package only.
type Token string

// Strings converts a token slice to plain strings.
func Strings(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = string(t)
	}
	return out
}

// AlignOp identifies the edit operation that produced a [WordComparisonResult].
type AlignOp string

const (
	// OpSubstitute pairs one target word with one spoken word. The pair may
	// still be correct when the words are similar enough.
	OpSubstitute AlignOp = "substitute"

	// OpDelete marks a target word the speaker never said.
	OpDelete AlignOp = "delete"

	// OpInsert marks a spoken word with no counterpart in the target.
	OpInsert AlignOp = "insert"
)

// MissingWord is the placeholder shown in place of a target word that was not
// spoken at all.
const MissingWord = "___"

// WordComparisonResult is one aligned position of a final comparison.
type WordComparisonResult struct {
	// Word is the spoken word, or [MissingWord] for deletions.
	Word string `json:"word"`

	// OriginalWord is the target word, or "" for insertions.
	OriginalWord string `json:"original_word"`

	IsCorrect  bool    `json:"is_correct"`
	Similarity float64 `json:"similarity"`

	Op AlignOp `json:"op"`

	// TargetIndex and SpokenIndex locate the pair in the input sequences.
	// Either is -1 when the operation has no word on that side.
	TargetIndex int `json:"target_index"`
	SpokenIndex int `json:"spoken_index"`
}

// FeedbackStatus classifies a word during streaming feedback.
type FeedbackStatus string

const (
	StatusCorrect   FeedbackStatus = "correct"
	StatusPartial   FeedbackStatus = "partial"
	StatusIncorrect FeedbackStatus = "incorrect"
	StatusExtra     FeedbackStatus = "extra"
	StatusMissing   FeedbackStatus = "missing"
)

// RealTimeFeedback describes one spoken or target word while the speaker is
// still talking. The whole list is regenerated on every interim update.
type RealTimeFeedback struct {
	// Word is the spoken word, or "" for missing target words.
	Word   string         `json:"word"`
	Status FeedbackStatus `json:"status"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`

	// Suggestion is the target word the speaker should have said, if any.
	Suggestion string `json:"suggestion,omitempty"`

	// Position is the spoken-order index for spoken words and the
	// target-order index for missing words.
	Position int `json:"position"`
}

// SpeechTiming records when a recognised word arrived.
type SpeechTiming struct {
	Word     string        `json:"word"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// SpeedClass is the speaking-rate classification.
type SpeedClass string

const (
	SpeedUnknown SpeedClass = "unknown"
	SpeedTooSlow SpeedClass = "too_slow"
	SpeedGood    SpeedClass = "good"
	SpeedTooFast SpeedClass = "too_fast"
)

// SpeedAnalysis is the output of a speaking-rate analysis.
type SpeedAnalysis struct {
	WordsPerMinute float64    `json:"words_per_minute"`
	Class          SpeedClass `json:"class"`
	Recommendation string     `json:"recommendation"`
}

// PauseClass is the pause-pattern classification.
type PauseClass string

const (
	PauseLong  PauseClass = "long_pauses"
	PauseGreat PauseClass = "great_fluency"
	PauseGood  PauseClass = "good_pattern"
)

// PauseAnalysis summarises pauses longer than the counting threshold.
type PauseAnalysis struct {
	Count    int           `json:"count"`
	Mean     time.Duration `json:"mean"`
	Max      time.Duration `json:"max"`
	Class    PauseClass    `json:"class"`
	Feedback string        `json:"feedback"`
}

// TimingStats bundles the timing analyses consumed by the score composer.
// A nil *TimingStats means no word-level timing was captured.
type TimingStats struct {
	Speed  SpeedAnalysis `json:"speed"`
	Pauses PauseAnalysis `json:"pauses"`
}

// AssessmentResult is the terminal output of one assessment pass.
type AssessmentResult struct {
	ID            string `json:"id,omitempty"`
	Transcription string `json:"transcription"`
	OriginalText  string `json:"original_text"`
	Language      string `json:"language,omitempty"`

	OverallScore float64 `json:"overall_score"`
	Accuracy     float64 `json:"accuracy"`
	Fluency      float64 `json:"fluency"`
	Completeness float64 `json:"completeness"`
	Prosody      float64 `json:"prosody"`

	WordAssessments []WordComparisonResult `json:"word_assessments"`
	Feedback        []string               `json:"feedback"`
	Suggestions     []string               `json:"suggestions"`

	// Source names the tier that produced the result: "ai:<provider>",
	// "local", "placeholder", or "none".
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
