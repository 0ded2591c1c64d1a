package timing_test

import (
	"testing"
	"time"

	"github.com/MrWong99/fluentia/internal/transcript/timing"
	"github.com/MrWong99/fluentia/pkg/types"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return epoch.Add(time.Duration(ms) * time.Millisecond) }

func recordAll(l *timing.Log, ms ...int) {
	for i, m := range ms {
		l.Record(string(rune('a'+i)), at(m))
	}
}

func TestRecord_ClosesPreviousEntry(t *testing.T) {
	t.Parallel()

	var l timing.Log
	l.Start(epoch)
	recordAll(&l, 0, 500, 1200)

	got := l.Entries()
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	wantDur := []time.Duration{500 * time.Millisecond, 700 * time.Millisecond, 0}
	for i, e := range got {
		if e.Duration != wantDur[i] {
			t.Errorf("entries[%d].Duration = %v, want %v", i, e.Duration, wantDur[i])
		}
	}
	if !got[2].End.Equal(got[2].Start) {
		t.Error("last entry should stay open with End == Start")
	}
}

func TestSpeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ms    []int
		class types.SpeedClass
		wpm   float64
	}{
		{"no words", nil, types.SpeedUnknown, 0},
		{"one word", []int{0}, types.SpeedUnknown, 0},
		{"same instant", []int{0, 0, 0}, types.SpeedUnknown, 0},
		{"exactly 180 is good", []int{0, 500, 1000}, types.SpeedGood, 180},
		{"too slow", []int{0, 2000}, types.SpeedTooSlow, 60},
		{"too fast", []int{0, 250, 500, 750, 1000}, types.SpeedTooFast, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var l timing.Log
			l.Start(epoch)
			recordAll(&l, tt.ms...)

			got := l.Speed()
			if got.Class != tt.class {
				t.Errorf("Class = %q, want %q", got.Class, tt.class)
			}
			if got.WordsPerMinute != tt.wpm {
				t.Errorf("WordsPerMinute = %f, want %f", got.WordsPerMinute, tt.wpm)
			}
			if got.Recommendation == "" {
				t.Error("Recommendation must not be empty")
			}
		})
	}
}

func TestClassifySpeed_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wpm  float64
		want types.SpeedClass
	}{
		{119.9, types.SpeedTooSlow},
		{120, types.SpeedGood},
		{180, types.SpeedGood},
		{181, types.SpeedTooFast},
	}
	for _, tt := range tests {
		if got := timing.ClassifySpeed(tt.wpm).Class; got != tt.want {
			t.Errorf("ClassifySpeed(%v) = %q, want %q", tt.wpm, got, tt.want)
		}
	}
}

func TestPauses(t *testing.T) {
	t.Parallel()

	type span struct{ start, end int }
	tests := []struct {
		name  string
		spans []span
		count int
		mean  time.Duration
		max   time.Duration
		class types.PauseClass
	}{
		{
			name:  "no gaps",
			spans: []span{{0, 300}, {300, 600}},
			class: types.PauseGreat,
		},
		{
			name:  "gap at threshold is not a pause",
			spans: []span{{0, 300}, {400, 600}},
			class: types.PauseGreat,
		},
		{
			name:  "one short pause",
			spans: []span{{0, 300}, {450, 600}},
			count: 1,
			mean:  150 * time.Millisecond,
			max:   150 * time.Millisecond,
			class: types.PauseGreat,
		},
		{
			name:  "long mean",
			spans: []span{{0, 300}, {1600, 1900}},
			count: 1,
			mean:  1300 * time.Millisecond,
			max:   1300 * time.Millisecond,
			class: types.PauseLong,
		},
		{
			name:  "mixed",
			spans: []span{{0, 300}, {500, 800}, {2500, 2800}},
			count: 2,
			mean:  950 * time.Millisecond,
			max:   1700 * time.Millisecond,
			class: types.PauseGood,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var l timing.Log
			l.Start(epoch)
			for i, s := range tt.spans {
				l.RecordSpan(string(rune('a'+i)), at(s.start), at(s.end))
			}

			got := l.Pauses()
			if got.Count != tt.count || got.Mean != tt.mean || got.Max != tt.max || got.Class != tt.class {
				t.Errorf("Pauses = %+v, want count=%d mean=%v max=%v class=%q",
					got, tt.count, tt.mean, tt.max, tt.class)
			}
			if got.Feedback == "" {
				t.Error("Feedback must not be empty")
			}
		})
	}
}

func TestPauses_RecordHasNoGaps(t *testing.T) {
	t.Parallel()

	var l timing.Log
	l.Start(epoch)
	recordAll(&l, 0, 3000, 6000)

	if got := l.Pauses(); got.Count != 0 || got.Class != types.PauseGreat {
		t.Errorf("Pauses = %+v, want no pauses", got)
	}
}

func TestRecordSpan_ClosesOpenEntry(t *testing.T) {
	t.Parallel()

	var l timing.Log
	l.Start(epoch)
	l.Record("hello", at(0))
	l.RecordSpan("world", at(400), at(700))

	got := l.Entries()
	if got[0].Duration != 400*time.Millisecond {
		t.Errorf("open entry Duration = %v, want 400ms", got[0].Duration)
	}
	if got[1].Duration != 300*time.Millisecond {
		t.Errorf("span Duration = %v, want 300ms", got[1].Duration)
	}
}

func TestStartAndReset(t *testing.T) {
	t.Parallel()

	var l timing.Log
	l.Start(epoch)
	recordAll(&l, 0, 500)
	if l.Stats() == nil {
		t.Fatal("Stats should not be nil after recording words")
	}

	l.Start(at(10_000))
	if l.Len() != 0 {
		t.Errorf("Len after Start = %d, want 0", l.Len())
	}
	if !l.Started().Equal(at(10_000)) {
		t.Errorf("Started = %v, want %v", l.Started(), at(10_000))
	}

	recordAll(&l, 10_000)
	l.Reset()
	if l.Len() != 0 || !l.Started().IsZero() {
		t.Error("Reset should clear entries and start instant")
	}
	if l.Stats() != nil {
		t.Error("Stats should be nil for an empty log")
	}
}

func TestEntries_ReturnsCopy(t *testing.T) {
	t.Parallel()

	var l timing.Log
	recordAll(&l, 0, 500)
	got := l.Entries()
	got[0].Word = "mutated"
	if l.Entries()[0].Word == "mutated" {
		t.Error("Entries must return a copy")
	}
}
