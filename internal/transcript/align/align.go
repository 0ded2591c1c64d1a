// Package align performs the final word-level comparison between a target
// sentence and a finished transcript.
//
// [Final] runs a classic edit-distance dynamic programme over whole token
// sequences. Substituting one word for another is free when the two words are
// at least [CostThreshold] similar, so near-misses do not distort the path.
// A stricter [CorrectThreshold] then decides which aligned pairs are shown as
// correct. Every target word appears in the output exactly once, either as
// one side of a substitution or as a deletion.
package align

import (
	"github.com/MrWong99/fluentia/internal/transcript/phonetic"
	"github.com/MrWong99/fluentia/pkg/types"
)

const (
	// CostThreshold is the similarity at or above which a substitution costs
	// nothing in the DP.
	CostThreshold = 0.6

	// CorrectThreshold is the similarity above which an aligned pair is
	// reported as correct.
	CorrectThreshold = 0.7
)

// Alignment is the result of [Final].
type Alignment struct {
	// Results holds one entry per path step, in target/spoken order.
	Results []types.WordComparisonResult

	// Correct is the number of results marked correct.
	Correct int

	// TargetWords and SpokenWords are the input lengths.
	TargetWords int
	SpokenWords int
}

// Ratio returns Correct divided by the number of results. An empty target
// yields 1: with nothing to say, nothing was said wrong.
func (a Alignment) Ratio() float64 {
	if a.TargetWords == 0 || len(a.Results) == 0 {
		return 1
	}
	return float64(a.Correct) / float64(len(a.Results))
}

// step is one backtracked edit operation.
type step struct {
	op   types.AlignOp
	i, j int // 1-based DP coordinates of the step's end cell
}

// Final aligns target against spoken using the word scorer. Time and space
// are O(m·n); inputs are single sentences.
func Final(target, spoken []types.Token) Alignment {
	return FinalWith(phonetic.Word, target, spoken)
}

// FinalWith is [Final] with an explicit scorer.
func FinalWith(scorer *phonetic.Scorer, target, spoken []types.Token) Alignment {
	m, n := len(target), len(spoken)

	sim := make([][]float64, m)
	for i := range sim {
		sim[i] = make([]float64, n)
		for j := range sim[i] {
			sim[i][j] = scorer.Score(string(target[i]), string(spoken[j]))
		}
	}
	cost := func(i, j int) int {
		if sim[i-1][j-1] >= CostThreshold {
			return 0
		}
		return 1
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		dp[i][0] = i
	}
	for j := 0; j <= n; j++ {
		dp[0][j] = j
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			dp[i][j] = min(
				dp[i-1][j-1]+cost(i, j),
				dp[i-1][j]+1,
				dp[i][j-1]+1,
			)
		}
	}

	// Backtrack, preferring substitute, then delete, then insert on ties.
	path := make([]step, 0, max(m, n))
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+cost(i, j):
			path = append(path, step{op: types.OpSubstitute, i: i, j: j})
			i--
			j--
		case i > 0 && dp[i][j] == dp[i-1][j]+1:
			path = append(path, step{op: types.OpDelete, i: i, j: j})
			i--
		default:
			path = append(path, step{op: types.OpInsert, i: i, j: j})
			j--
		}
	}

	out := Alignment{
		Results:     make([]types.WordComparisonResult, 0, len(path)),
		TargetWords: m,
		SpokenWords: n,
	}
	for k := len(path) - 1; k >= 0; k-- {
		s := path[k]
		var r types.WordComparisonResult
		switch s.op {
		case types.OpSubstitute:
			score := sim[s.i-1][s.j-1]
			r = types.WordComparisonResult{
				Word:         string(spoken[s.j-1]),
				OriginalWord: string(target[s.i-1]),
				IsCorrect:    score > CorrectThreshold,
				Similarity:   score,
				Op:           types.OpSubstitute,
				TargetIndex:  s.i - 1,
				SpokenIndex:  s.j - 1,
			}
		case types.OpDelete:
			r = types.WordComparisonResult{
				Word:         types.MissingWord,
				OriginalWord: string(target[s.i-1]),
				Op:           types.OpDelete,
				TargetIndex:  s.i - 1,
				SpokenIndex:  -1,
			}
		case types.OpInsert:
			r = types.WordComparisonResult{
				Word:        string(spoken[s.j-1]),
				Op:          types.OpInsert,
				TargetIndex: -1,
				SpokenIndex: s.j - 1,
			}
		}
		if r.IsCorrect {
			out.Correct++
		}
		out.Results = append(out.Results, r)
	}
	return out
}
