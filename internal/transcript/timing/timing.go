// Package timing derives speaking rate and pause statistics from word arrival
// timestamps.
//
// A [Log] belongs to exactly one recording session and is not safe for
// concurrent use. The owning goroutine starts it, records words as the
// recogniser reports them, and reads the analyses when the session ends.
package timing

import (
	"time"

	"github.com/MrWong99/fluentia/pkg/types"
)

const (
	// FastWPM and SlowWPM bound the comfortable speaking range. Both bounds
	// are inclusive of the good class.
	FastWPM = 180.0
	SlowWPM = 120.0

	// PauseThreshold is the shortest gap counted as a pause.
	PauseThreshold = 100 * time.Millisecond

	longPauseMean  = time.Second
	shortPauseMean = 200 * time.Millisecond
)

const (
	recUnknown = "Keep speaking so your pace can be measured."
	recTooFast = "Slow down a little and give each word room to land."
	recTooSlow = "Try to speak a bit faster and keep words connected."
	recGood    = "Great pace. Keep speaking at this speed."

	pauseLongFeedback  = "Try to reduce long pauses between words."
	pauseGreatFeedback = "Great fluency with minimal pauses."
	pauseGoodFeedback  = "Good pause pattern."
)

// Log accumulates word timings for one session.
type Log struct {
	started time.Time
	entries []types.SpeechTiming

	// open reports whether the last entry is still waiting for the next word
	// to close out its end time.
	open bool
}

// Start records the session start instant and clears any previous entries.
func (l *Log) Start(now time.Time) {
	l.started = now
	l.entries = l.entries[:0]
	l.open = false
}

// Started returns the instant passed to the last [Log.Start] call.
func (l *Log) Started() time.Time { return l.started }

// Record appends word arriving at ts. The previous open entry is closed at ts,
// so its duration runs up to the next word and the gap between them is zero.
func (l *Log) Record(word string, ts time.Time) {
	l.closeOpen(ts)
	l.entries = append(l.entries, types.SpeechTiming{
		Word:  word,
		Start: ts,
		End:   ts,
	})
	l.open = true
}

// RecordSpan appends a word whose start and end are both known, as reported
// by recognisers with word-level timestamps. Gaps between spans count as
// pauses.
func (l *Log) RecordSpan(word string, start, end time.Time) {
	if end.Before(start) {
		end = start
	}
	l.closeOpen(start)
	l.entries = append(l.entries, types.SpeechTiming{
		Word:     word,
		Start:    start,
		End:      end,
		Duration: end.Sub(start),
	})
}

func (l *Log) closeOpen(ts time.Time) {
	if !l.open || len(l.entries) == 0 {
		return
	}
	prev := &l.entries[len(l.entries)-1]
	if ts.After(prev.Start) {
		prev.End = ts
		prev.Duration = ts.Sub(prev.Start)
	}
	l.open = false
}

// Len returns the number of recorded words.
func (l *Log) Len() int { return len(l.entries) }

// Entries returns a copy of the recorded timings in arrival order.
func (l *Log) Entries() []types.SpeechTiming {
	out := make([]types.SpeechTiming, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reset clears the log, including the start instant.
func (l *Log) Reset() {
	*l = Log{entries: l.entries[:0]}
}

// Speed classifies the speaking rate. Fewer than two words, or words that all
// arrived at the same instant, yield [types.SpeedUnknown].
func (l *Log) Speed() types.SpeedAnalysis {
	if len(l.entries) < 2 {
		return types.SpeedAnalysis{Class: types.SpeedUnknown, Recommendation: recUnknown}
	}
	first, last := l.entries[0], l.entries[len(l.entries)-1]
	total := last.End.Sub(first.Start).Seconds()
	if total <= 0 {
		return types.SpeedAnalysis{Class: types.SpeedUnknown, Recommendation: recUnknown}
	}

	wpm := float64(len(l.entries)) / total * 60
	return ClassifySpeed(wpm)
}

// ClassifySpeed maps a words-per-minute rate to its class and recommendation.
func ClassifySpeed(wpm float64) types.SpeedAnalysis {
	a := types.SpeedAnalysis{WordsPerMinute: wpm}
	switch {
	case wpm > FastWPM:
		a.Class, a.Recommendation = types.SpeedTooFast, recTooFast
	case wpm < SlowWPM:
		a.Class, a.Recommendation = types.SpeedTooSlow, recTooSlow
	default:
		a.Class, a.Recommendation = types.SpeedGood, recGood
	}
	return a
}

// Pauses summarises the gaps between consecutive words longer than
// [PauseThreshold].
func (l *Log) Pauses() types.PauseAnalysis {
	var (
		a     types.PauseAnalysis
		total time.Duration
	)
	for i := 1; i < len(l.entries); i++ {
		gap := l.entries[i].Start.Sub(l.entries[i-1].End)
		if gap <= PauseThreshold {
			continue
		}
		a.Count++
		total += gap
		a.Max = max(a.Max, gap)
	}
	if a.Count > 0 {
		a.Mean = total / time.Duration(a.Count)
	}

	switch {
	case a.Mean > longPauseMean:
		a.Class, a.Feedback = types.PauseLong, pauseLongFeedback
	case a.Mean < shortPauseMean && a.Count < 2:
		a.Class, a.Feedback = types.PauseGreat, pauseGreatFeedback
	default:
		a.Class, a.Feedback = types.PauseGood, pauseGoodFeedback
	}
	return a
}

// Stats bundles [Log.Speed] and [Log.Pauses]. It returns nil when no words
// were recorded.
func (l *Log) Stats() *types.TimingStats {
	if len(l.entries) == 0 {
		return nil
	}
	return &types.TimingStats{Speed: l.Speed(), Pauses: l.Pauses()}
}
