// Package realtime scores in-progress (interim) transcripts against a fixed
// target sentence.
//
// Interim recogniser output is unstable and arrives many times per second, so
// [Match] uses a greedy best-match scan instead of the full alignment in the
// align package: each spoken word claims the most similar target word that
// has not been claimed yet. Every call is independent; callers pass the full
// interim text each time, never a delta.
package realtime

import (
	"slices"

	"github.com/MrWong99/fluentia/internal/transcript/normalize"
	"github.com/MrWong99/fluentia/internal/transcript/phonetic"
	"github.com/MrWong99/fluentia/pkg/types"
)

const (
	correctThreshold   = 0.9
	partialThreshold   = 0.7
	incorrectThreshold = 0.5

	partialConfidenceScale   = 0.8
	incorrectConfidenceScale = 0.6
	incorrectConfidenceFloor = 0.2
)

// Match classifies every word of interim against target and returns the
// feedback list ordered by position. Target words no spoken word claimed are
// reported as missing.
func Match(target []types.Token, interim string) []types.RealTimeFeedback {
	return MatchTokens(phonetic.Word, target, normalize.Tokens(interim))
}

// MatchTokens is [Match] over already-normalised spoken tokens with an
// explicit scorer.
func MatchTokens(scorer *phonetic.Scorer, target, spoken []types.Token) []types.RealTimeFeedback {
	consumed := make([]bool, len(target))
	out := make([]types.RealTimeFeedback, 0, len(spoken)+len(target))

	for pos, word := range spoken {
		best := -1
		var bestMatch phonetic.Match
		for ti, tw := range target {
			if consumed[ti] {
				continue
			}
			m := scorer.Compare(string(word), string(tw))
			if best < 0 || m.Score > bestMatch.Score {
				best, bestMatch = ti, m
			}
		}

		fb := types.RealTimeFeedback{Word: string(word), Position: pos}
		switch {
		case best < 0 || bestMatch.Score < incorrectThreshold:
			fb.Status = types.StatusExtra
			if best >= 0 {
				fb.Confidence = bestMatch.Score
			}
		case bestMatch.Score >= correctThreshold && !bestMatch.Kind.SoundAlike():
			consumed[best] = true
			fb.Status = types.StatusCorrect
			fb.Confidence = bestMatch.Score
		case bestMatch.Score >= partialThreshold:
			// Sound-alike table hits land here even above the correct
			// threshold: the speaker said a different word.
			consumed[best] = true
			fb.Status = types.StatusPartial
			fb.Confidence = bestMatch.Score * partialConfidenceScale
			fb.Suggestion = string(target[best])
		default:
			consumed[best] = true
			fb.Status = types.StatusIncorrect
			fb.Confidence = max(bestMatch.Score*incorrectConfidenceScale, incorrectConfidenceFloor)
			fb.Suggestion = string(target[best])
		}
		out = append(out, fb)
	}

	for ti, tw := range target {
		if consumed[ti] {
			continue
		}
		out = append(out, types.RealTimeFeedback{
			Status:     types.StatusMissing,
			Suggestion: string(tw),
			Position:   ti,
		})
	}

	// Stable so that a spoken word and a missing target word sharing a
	// position keep spoken-first order.
	slices.SortStableFunc(out, func(a, b types.RealTimeFeedback) int {
		return a.Position - b.Position
	})
	return out
}

// Summary counts feedback entries per status.
type Summary struct {
	Correct   int `json:"correct"`
	Partial   int `json:"partial"`
	Incorrect int `json:"incorrect"`
	Extra     int `json:"extra"`
	Missing   int `json:"missing"`
}

// Summarize tallies a feedback list.
func Summarize(feedback []types.RealTimeFeedback) Summary {
	var s Summary
	for _, fb := range feedback {
		switch fb.Status {
		case types.StatusCorrect:
			s.Correct++
		case types.StatusPartial:
			s.Partial++
		case types.StatusIncorrect:
			s.Incorrect++
		case types.StatusExtra:
			s.Extra++
		case types.StatusMissing:
			s.Missing++
		}
	}
	return s
}

// Progress returns the share of target words already claimed by a spoken
// word, in [0,1]. An empty target counts as complete.
func (s Summary) Progress() float64 {
	total := s.Correct + s.Partial + s.Incorrect + s.Missing
	if total == 0 {
		return 1
	}
	return float64(s.Correct+s.Partial+s.Incorrect) / float64(total)
}
