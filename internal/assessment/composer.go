// Package assessment turns transcripts and timing into scored assessments.
//
// It holds three layers:
//
//   - [Composer] is the deterministic scorer. It offers a streaming variant
//     ([Composer.Overall]) used for live overall feedback and an assessment
//     variant ([Composer.Assess]) used for stored submissions.
//   - [Session] is the per-recording state: target words, the timing log and
//     the latest interim feedback. A Session is owned by exactly one
//     goroutine.
//   - [Assessor] runs the tiered scoring chain for final submissions: AI
//     providers first, then the local composer, then a bounded placeholder,
//     and finally a zero-score result.
package assessment

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/fluentia/internal/transcript/align"
	"github.com/MrWong99/fluentia/internal/transcript/normalize"
	"github.com/MrWong99/fluentia/internal/transcript/phonetic"
	"github.com/MrWong99/fluentia/pkg/types"
)

// Sources reported in [types.AssessmentResult.Source] by tiers other than AI.
const (
	SourceLocal       = "local"
	SourcePlaceholder = "placeholder"
	SourceNone        = "none"
)

// Streaming score deductions per adverse timing class.
const (
	speedScoreGood    = 100
	speedScoreTooFast = 80
	speedScoreTooSlow = 70
	speedScoreUnknown = 80

	fluencyScoreSmooth     = 100
	fluencyScoreLongPauses = 60
)

// Assessment variant penalties and weights.
const (
	longPausePenalty  = 30
	badSpeedPenalty   = 15
	extraWordPenalty  = 5
	maxExtraPenalty   = 20
	prosodySimilarity = 0.7
	prosodyPace       = 0.3
	paceScoreGood     = 100
	paceScoreAdverse  = 70
	paceScoreUnknown  = 80

	// longPauseMean is the mean pause above which fluency is penalised.
	longPauseMean = time.Second

	// maxWordSuggestions caps per-word practice tips.
	maxWordSuggestions = 3
)

// Guidance returned when no speech was detected.
var (
	emptyFeedback    = []string{"No speech was detected in your recording."}
	emptySuggestions = []string{
		"Check that your microphone is connected and not muted.",
		"Speak clearly and close to the microphone.",
		"Try again when you are ready.",
	}
)

// OverallFeedback is the output of the streaming composer variant.
type OverallFeedback struct {
	OverallScore float64 `json:"overall_score"`
	Accuracy     float64 `json:"accuracy"`
	SpeedScore   float64 `json:"speed_score"`
	FluencyScore float64 `json:"fluency_score"`

	Speed  types.SpeedAnalysis `json:"speed"`
	Pauses types.PauseAnalysis `json:"pauses"`

	Feedback    []string `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

// Composer scores transcripts against target sentences. It is stateless and
// safe for concurrent use.
type Composer struct {
	word     *phonetic.Scorer
	sentence *phonetic.Scorer
}

// NewComposer returns a Composer using the word policy for alignment and the
// sentence policy for whole-string comparison.
func NewComposer() *Composer {
	return &Composer{word: phonetic.Word, sentence: phonetic.Sentence}
}

// Overall computes the streaming overall feedback. Accuracy compares the
// normalised target and transcript as single strings; the overall score
// weighs accuracy, speed and fluency 0.5, 0.3 and 0.2.
func (c *Composer) Overall(target, transcript string, speed types.SpeedAnalysis, pauses types.PauseAnalysis) OverallFeedback {
	tt, st := normalize.Text(target), normalize.Text(transcript)
	if st == "" {
		return OverallFeedback{
			Speed:       speed,
			Pauses:      pauses,
			Feedback:    slices.Clone(emptyFeedback),
			Suggestions: slices.Clone(emptySuggestions),
		}
	}

	accuracy := 100.0
	if tt != "" {
		accuracy = clamp(c.sentence.Score(tt, st) * 100)
	}
	speedScore := float64(streamingSpeedScore(speed.Class))
	fluency := float64(fluencyScoreSmooth)
	if pauses.Class == types.PauseLong {
		fluency = fluencyScoreLongPauses
	}

	fb := OverallFeedback{
		Accuracy:     accuracy,
		SpeedScore:   speedScore,
		FluencyScore: fluency,
		OverallScore: clamp(math.Round(accuracy*0.5 + speedScore*0.3 + fluency*0.2)),
		Speed:        speed,
		Pauses:       pauses,
	}

	fb.Feedback = append(fb.Feedback, accuracyFeedback(accuracy))
	if speed.Recommendation != "" {
		fb.Feedback = append(fb.Feedback, speed.Recommendation)
	}
	if pauses.Feedback != "" {
		fb.Feedback = append(fb.Feedback, pauses.Feedback)
	}

	if accuracy < 80 {
		fb.Suggestions = append(fb.Suggestions, "Listen to the sentence again and repeat it slowly, word by word.")
	}
	switch speed.Class {
	case types.SpeedTooFast:
		fb.Suggestions = append(fb.Suggestions, "Slow down a little so every word is clear.")
	case types.SpeedTooSlow:
		fb.Suggestions = append(fb.Suggestions, "Try to link the words together at a steadier pace.")
	}
	if pauses.Class == types.PauseLong {
		fb.Suggestions = append(fb.Suggestions, "Read the sentence silently once before speaking to reduce pauses.")
	}
	if len(fb.Suggestions) == 0 {
		fb.Suggestions = append(fb.Suggestions, "Keep practising with longer sentences.")
	}
	return fb
}

func streamingSpeedScore(class types.SpeedClass) int {
	switch class {
	case types.SpeedGood:
		return speedScoreGood
	case types.SpeedTooFast:
		return speedScoreTooFast
	case types.SpeedTooSlow:
		return speedScoreTooSlow
	default:
		return speedScoreUnknown
	}
}

// Assess computes a full assessment of transcript against target. stats may
// be nil when no word timing was captured. The overall score is the
// unweighted mean of accuracy, fluency, completeness and prosody.
func (c *Composer) Assess(transcript, target string, stats *types.TimingStats) *types.AssessmentResult {
	spoken := normalize.Tokens(transcript)
	if len(spoken) == 0 {
		return EmptyResult(transcript, target)
	}
	tokens := normalize.Tokens(target)
	al := align.FinalWith(c.word, tokens, spoken)

	accuracy := clamp(al.Ratio() * 100)

	completeness := 100.0
	if len(tokens) > 0 {
		completeness = clamp(min(float64(len(spoken))/float64(len(tokens)), 1) * 100)
	}

	var inserted, missing []string
	var simSum float64
	var simN int
	for _, r := range al.Results {
		switch r.Op {
		case types.OpInsert:
			inserted = append(inserted, r.Word)
			continue
		case types.OpDelete:
			missing = append(missing, r.OriginalWord)
		}
		simSum += r.Similarity
		simN++
	}

	fluency := 100.0 - float64(min(extraWordPenalty*len(inserted), maxExtraPenalty))
	pace := float64(paceScoreUnknown)
	if stats != nil {
		if stats.Pauses.Mean > longPauseMean {
			fluency -= longPausePenalty
		}
		switch stats.Speed.Class {
		case types.SpeedTooFast, types.SpeedTooSlow:
			fluency -= badSpeedPenalty
			pace = paceScoreAdverse
		case types.SpeedGood:
			pace = paceScoreGood
		}
	}
	fluency = clamp(fluency)

	meanSim := 1.0
	if simN > 0 {
		meanSim = simSum / float64(simN)
	}
	prosody := clamp(prosodySimilarity*meanSim*100 + prosodyPace*pace)

	overall := clamp(math.Round((accuracy + fluency + completeness + prosody) / 4))

	return &types.AssessmentResult{
		Transcription:   transcript,
		OriginalText:    target,
		OverallScore:    overall,
		Accuracy:        accuracy,
		Fluency:         fluency,
		Completeness:    completeness,
		Prosody:         prosody,
		WordAssessments: al.Results,
		Feedback:        assessmentFeedback(overall, missing, stats),
		Suggestions:     assessmentSuggestions(al.Results, missing, inserted),
		Source:          SourceLocal,
	}
}

// EmptyResult is the zero-score assessment returned when nothing was said.
// Every target word is listed as missing.
func EmptyResult(transcript, target string) *types.AssessmentResult {
	al := align.Final(normalize.Tokens(target), nil)
	return &types.AssessmentResult{
		Transcription:   transcript,
		OriginalText:    target,
		WordAssessments: al.Results,
		Feedback:        slices.Clone(emptyFeedback),
		Suggestions:     slices.Clone(emptySuggestions),
		Source:          SourceNone,
	}
}

func accuracyFeedback(accuracy float64) string {
	switch {
	case accuracy >= 90:
		return "Excellent! Your words matched the sentence very closely."
	case accuracy >= 75:
		return "Good job, most of the sentence came through clearly."
	case accuracy >= 50:
		return "Fair attempt, several words did not match the sentence."
	default:
		return "Keep practising, much of the sentence was not recognised."
	}
}

func assessmentFeedback(overall float64, missing []string, stats *types.TimingStats) []string {
	var out []string
	switch {
	case overall >= 90:
		out = append(out, "Excellent pronunciation!")
	case overall >= 75:
		out = append(out, "Good job, most words were clear.")
	case overall >= 50:
		out = append(out, "Fair attempt, several words need more work.")
	default:
		out = append(out, "Keep practising, many words were not recognised.")
	}
	if len(missing) > 0 {
		out = append(out, fmt.Sprintf("You skipped %d word(s): %s.", len(missing), strings.Join(missing, ", ")))
	}
	if stats != nil {
		if stats.Speed.Class != types.SpeedUnknown && stats.Speed.Recommendation != "" {
			out = append(out, stats.Speed.Recommendation)
		}
		if stats.Pauses.Feedback != "" {
			out = append(out, stats.Pauses.Feedback)
		}
	}
	return out
}

func assessmentSuggestions(results []types.WordComparisonResult, missing, inserted []string) []string {
	var out []string
	n := 0
	for _, r := range results {
		if r.Op != types.OpSubstitute || r.IsCorrect {
			continue
		}
		if n == maxWordSuggestions {
			break
		}
		n++
		if phonetic.SoundsAlike(r.OriginalWord, r.Word) {
			out = append(out, fmt.Sprintf("%q sounded like %q; focus on the exact sounds of %q.", r.OriginalWord, r.Word, r.OriginalWord))
		} else {
			out = append(out, fmt.Sprintf("Practise the word %q (you said %q).", r.OriginalWord, r.Word))
		}
	}
	if len(missing) > 0 {
		out = append(out, fmt.Sprintf("Read the whole sentence, including %q.", missing[0]))
	}
	if len(inserted) > 0 {
		out = append(out, fmt.Sprintf("Avoid adding extra words such as %q.", inserted[0]))
	}
	if len(out) == 0 {
		out = append(out, "Try a longer or faster sentence to keep improving.")
	}
	return out
}

// clamp bounds a score to [0,100].
func clamp(v float64) float64 {
	return max(0, min(v, 100))
}
