// Package normalize canonicalises raw transcript and reference strings into
// comparable token sequences.
//
// Normalisation lowercases the input, drops apostrophes, strips every other
// punctuation or symbol rune, expands a fixed contraction table, and collapses
// whitespace. Because apostrophes are removed before the table lookup, "don't"
// and "dont" produce the same tokens. The process is idempotent:
// Text(Text(x)) == Text(x).
package normalize

import (
	"strings"
	"unicode"

	"github.com/MrWong99/fluentia/pkg/types"
)

// contractions maps apostrophe-free contraction spellings to their expansion.
// Words that collide with ordinary vocabulary ("were", "well", "ill", "id")
// are left out. No expansion contains a key, which keeps Text idempotent.
var contractions = map[string]string{
	"dont":     "do not",
	"doesnt":   "does not",
	"didnt":    "did not",
	"isnt":     "is not",
	"arent":    "are not",
	"wasnt":    "was not",
	"werent":   "were not",
	"havent":   "have not",
	"hasnt":    "has not",
	"hadnt":    "had not",
	"wont":     "will not",
	"wouldnt":  "would not",
	"cant":     "can not",
	"cannot":   "can not",
	"couldnt":  "could not",
	"shouldnt": "should not",
	"mustnt":   "must not",
	"its":      "it is",
	"im":       "i am",
	"ive":      "i have",
	"youre":    "you are",
	"youve":    "you have",
	"youll":    "you will",
	"youd":     "you would",
	"hes":      "he is",
	"shes":     "she is",
	"weve":     "we have",
	"theyre":   "they are",
	"theyve":   "they have",
	"theyll":   "they will",
	"theyd":    "they would",
	"thats":    "that is",
	"whats":    "what is",
	"wheres":   "where is",
	"whos":     "who is",
	"theres":   "there is",
	"heres":    "here is",
	"lets":     "let us",
}

// isApostrophe reports whether r is one of the apostrophe variants commonly
// produced by keyboards and recognisers.
func isApostrophe(r rune) bool {
	switch r {
	case '\'', '’', '‘', '`', 'ʼ':
		return true
	}
	return false
}

// strip lowercases s, removes apostrophes, punctuation and symbols, and turns
// every kind of whitespace into a plain space.
func strip(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case isApostrophe(r):
		case unicode.IsSpace(r):
			sb.WriteByte(' ')
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Words returns the normalised words of s as plain strings. Empty or
// whitespace-only input yields an empty (nil) slice.
func Words(s string) []string {
	fields := strings.Fields(strip(s))
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if exp, ok := contractions[f]; ok {
			out = append(out, strings.Fields(exp)...)
			continue
		}
		out = append(out, f)
	}
	return out
}

// Tokens returns the normalised token sequence of s.
func Tokens(s string) []types.Token {
	words := Words(s)
	if len(words) == 0 {
		return nil
	}
	out := make([]types.Token, len(words))
	for i, w := range words {
		out[i] = types.Token(w)
	}
	return out
}

// Text returns the normalised form of s as a single space-joined string.
func Text(s string) string {
	return strings.Join(Words(s), " ")
}
