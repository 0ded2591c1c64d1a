// Package phonetic scores how closely two normalised words match, combining
// orthographic edit distance with fixed tables of homophones and sounds that
// speech recognisers commonly confuse.
//
// Scoring proceeds in priority order:
//
//  1. Identical words score 1.0.
//  2. Words in the same homophone group ("to"/"too"/"two") score 0.95.
//  3. Words that become identical after swapping one commonly confused sound
//     fragment ("r"/"l", "th"/"f", ...) score 0.9.
//  4. Otherwise the Levenshtein ratio (maxLen-distance)/maxLen is used, with
//     small boosts for very short near-misses, a shared first letter, and a
//     shared two-letter ending.
//
// All tables are package-level read-only data; a [Scorer] holds only its
// boost policy and is safe for concurrent use.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	homophoneScore = 0.95
	confusionScore = 0.90

	shortWordMaxLen   = 3
	shortWordFloor    = 0.8
	firstLetterBoost  = 0.1
	endingBoost       = 0.05
	endingBoostMinLen = 4

	defaultFirstLetterMinLen  = 3
	sentenceFirstLetterMinLen = 4
)

// Kind records which rule produced a similarity score.
type Kind int

const (
	// KindEdit means the score came from edit distance.
	KindEdit Kind = iota

	// KindExact means the inputs were identical.
	KindExact

	// KindHomophone means both words belong to the same homophone group.
	KindHomophone

	// KindConfusion means one word becomes the other by swapping a commonly
	// misrecognised sound fragment.
	KindConfusion
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindHomophone:
		return "homophone"
	case KindConfusion:
		return "confusion"
	default:
		return "edit"
	}
}

// SoundAlike reports whether the match came from one of the fixed sound
// tables rather than from spelling.
func (k Kind) SoundAlike() bool {
	return k == KindHomophone || k == KindConfusion
}

// Match is a similarity score together with the rule that produced it.
type Match struct {
	Score float64
	Kind  Kind
}

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithFirstLetterMinLen sets the minimum length of the longer word for the
// shared-first-letter boost to apply. Default: 3.
func WithFirstLetterMinLen(n int) Option {
	return func(s *Scorer) {
		s.firstLetterMinLen = n
	}
}

// Scorer computes word similarity. It is read-only after construction.
type Scorer struct {
	firstLetterMinLen int
}

// New returns a [Scorer] configured with the supplied options.
func New(opts ...Option) *Scorer {
	s := &Scorer{firstLetterMinLen: defaultFirstLetterMinLen}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Word is the scorer used for word-to-word comparison by the aligner and the
// real-time matcher.
var Word = New()

// Sentence is the scorer used when whole normalised sentences are compared as
// single strings. Its first-letter boost only applies from length 4.
var Sentence = New(WithFirstLetterMinLen(sentenceFirstLetterMinLen))

// Similarity scores a and b with the [Word] policy.
func Similarity(a, b string) float64 {
	return Word.Score(a, b)
}

// Score returns the similarity of a and b in [0,1].
func (s *Scorer) Score(a, b string) float64 {
	return s.Compare(a, b).Score
}

// Compare returns the similarity of a and b along with the rule that
// produced it.
func (s *Scorer) Compare(a, b string) Match {
	if a == b {
		return Match{Score: 1, Kind: KindExact}
	}
	if isHomophone(a, b) {
		return Match{Score: homophoneScore, Kind: KindHomophone}
	}
	if isConfusion(a, b) {
		return Match{Score: confusionScore, Kind: KindConfusion}
	}
	return Match{Score: s.editScore(a, b), Kind: KindEdit}
}

// editScore is the Levenshtein ratio with the short-word, first-letter and
// ending boosts applied. The result never exceeds 1.
func (s *Scorer) editScore(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1
	}

	dist := matchr.Levenshtein(a, b)
	score := float64(maxLen-dist) / float64(maxLen)
	if score < 0 {
		score = 0
	}

	// Short near-misses are floored only when they share at least one
	// character. Two different single letters stay at 0, otherwise any
	// letter would align freely with any other.
	if maxLen <= shortWordMaxLen && dist <= 1 && dist < maxLen {
		score = max(score, shortWordFloor)
	}
	if len(ra) > 0 && len(rb) > 0 && ra[0] == rb[0] && maxLen >= s.firstLetterMinLen {
		score = min(1, score+firstLetterBoost)
	}
	if maxLen >= endingBoostMinLen && len(ra) >= 2 && len(rb) >= 2 &&
		string(ra[len(ra)-2:]) == string(rb[len(rb)-2:]) {
		score = min(1, score+endingBoost)
	}
	return score
}

// SoundsAlike reports whether a and b share a Double Metaphone code. It is
// used for pronunciation hints, not for scoring.
func SoundsAlike(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return codesOverlap(codesFor(a), codesFor(b))
}

// codesFor returns the non-empty Double Metaphone codes of word.
func codesFor(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
