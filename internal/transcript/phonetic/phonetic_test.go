package phonetic_test

import (
	"math"
	"testing"

	"github.com/MrWong99/fluentia/internal/transcript/phonetic"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSimilarity_Identity(t *testing.T) {
	t.Parallel()

	for _, w := range []string{"a", "rice", "pronunciation", "ümlaut", "101"} {
		if got := phonetic.Similarity(w, w); got != 1.0 {
			t.Errorf("Similarity(%q, %q) = %f, want 1.0", w, w, got)
		}
	}
}

func TestSimilarity_HomophoneSymmetry(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"to", "too"},
		{"too", "two"},
		{"there", "their"},
		{"be", "bee"},
		{"weight", "wait"},
		{"know", "no"},
	}
	for _, p := range pairs {
		ab := phonetic.Similarity(p[0], p[1])
		ba := phonetic.Similarity(p[1], p[0])
		if ab != 0.95 || ba != 0.95 {
			t.Errorf("Similarity(%q,%q)=%f, reverse=%f, want 0.95 both", p[0], p[1], ab, ba)
		}
	}
}

func TestSimilarity_ConfusionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
	}{
		{"lice", "rice"},
		{"rice", "lice"},
		{"fink", "think"},
		{"vine", "wine"},
		{"pig", "big"},
		{"ship", "sip"},
		{"yam", "jam"},
	}
	for _, tt := range tests {
		m := phonetic.Word.Compare(tt.a, tt.b)
		if m.Score != 0.9 || m.Kind != phonetic.KindConfusion {
			t.Errorf("Compare(%q,%q) = {%f %s}, want {0.9 confusion}", tt.a, tt.b, m.Score, m.Kind)
		}
	}
}

func TestSimilarity_EditDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		// maxLen 6, distance 1, shared "en" ending.
		{"ratio with ending boost", "kitten", "mitten", 5.0/6.0 + 0.05},
		// maxLen 5, distance 1, shared first letter and "se" ending.
		{"ratio with first letter boost", "house", "horse", 0.8 + 0.1 + 0.05},
		// short word near-miss floors at 0.8, shared first letter adds 0.1.
		{"short near miss", "cat", "cap", 0.9},
		// totally different words.
		{"unrelated", "abc", "xyz", 0},
		// different single characters share nothing and get no floor.
		{"single letters", "a", "b", 0},
		{"single letter vowels", "a", "i", 0},
		{"digits", "1", "2", 0},
		// two letters, one shared: floor applies.
		{"two letters one shared", "an", "in", 0.8},
		// maxLen 0 handled by identity rule.
		{"both empty", "", "", 1},
		{"one empty", "", "word", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := phonetic.Similarity(tt.a, tt.b); !approx(got, tt.want) {
				t.Errorf("Similarity(%q,%q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestScorer_FirstLetterThreshold(t *testing.T) {
	t.Parallel()

	// "cat" vs "cot": maxLen 3, distance 1 → floor 0.8.
	// The word policy (min len 3) adds the first-letter boost; the sentence
	// policy (min len 4) does not.
	word := phonetic.Word.Score("cat", "cot")
	sentence := phonetic.Sentence.Score("cat", "cot")
	if !approx(word, 0.9) {
		t.Errorf("Word.Score = %f, want 0.9", word)
	}
	if !approx(sentence, 0.8) {
		t.Errorf("Sentence.Score = %f, want 0.8", sentence)
	}

	custom := phonetic.New(phonetic.WithFirstLetterMinLen(10))
	if got := custom.Score("cat", "cot"); !approx(got, 0.8) {
		t.Errorf("custom.Score = %f, want 0.8", got)
	}
}

func TestSimilarity_NeverExceedsOne(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"internationalization", "internationalizatior"},
		{"running", "runnings"},
		{"ab", "ac"},
	}
	for _, p := range pairs {
		got := phonetic.Similarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Similarity(%q,%q) = %f, want within [0,1]", p[0], p[1], got)
		}
	}
}

func TestKind_SoundAlike(t *testing.T) {
	t.Parallel()

	if !phonetic.KindHomophone.SoundAlike() || !phonetic.KindConfusion.SoundAlike() {
		t.Error("homophone and confusion kinds must report SoundAlike")
	}
	if phonetic.KindExact.SoundAlike() || phonetic.KindEdit.SoundAlike() {
		t.Error("exact and edit kinds must not report SoundAlike")
	}
}

func TestSoundsAlike(t *testing.T) {
	t.Parallel()

	if !phonetic.SoundsAlike("knight", "night") {
		t.Error("SoundsAlike(knight, night) = false, want true")
	}
	if phonetic.SoundsAlike("apple", "zebra") {
		t.Error("SoundsAlike(apple, zebra) = true, want false")
	}
	if phonetic.SoundsAlike("", "night") {
		t.Error("SoundsAlike with empty input must be false")
	}
}
