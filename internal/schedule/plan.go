package schedule

import (
	"fmt"
	"time"

	"github.com/cbegin/tabplay-go/internal/tab"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

// Step is a tab event with its pitches resolved against a tuning.
type Step struct {
	Index    int // position in the step sequence
	Position int // grid column
	Notes    []tab.Note
	Pitches  []int // Pitches[i] sounds Notes[i]
}

// Resolve converts parsed events to steps under table.
func Resolve(t *tab.Tab, table tuning.Table) ([]Step, error) {
	steps := make([]Step, 0, len(t.Events))
	for i, ev := range t.Events {
		pitches := make([]int, len(ev.Notes))
		for j, n := range ev.Notes {
			p, err := table.Resolve(n.String, n.Fret)
			if err != nil {
				return nil, fmt.Errorf("event %d at column %d: %w", i, ev.Position, err)
			}
			pitches[j] = p
		}
		steps = append(steps, Step{Index: i, Position: ev.Position, Notes: ev.Notes, Pitches: pitches})
	}
	return steps, nil
}

// Triple is one sounded pitch with its start offset and length.
type Triple struct {
	Index    int // step that produced it
	Pitch    int
	Start    time.Duration
	Duration time.Duration
}

func (t Triple) StartMs() float64    { return float64(t.Start) / float64(time.Millisecond) }
func (t Triple) DurationMs() float64 { return float64(t.Duration) / float64(time.Millisecond) }

// Plan is the full, non-looping timeline of a step sequence at a fixed tempo.
type Plan struct {
	TempoBPM float64
	Triples  []Triple
	Length   time.Duration
}

// BuildPlan lays steps out on a timeline. Each note lasts until the next
// step begins.
func BuildPlan(steps []Step, bpm float64, timing Timing) Plan {
	timing = timing.normalized()
	plan := Plan{TempoBPM: bpm}
	if bpm <= 0 {
		return plan
	}
	unit := DurationMs(bpm, timing.NoteValue)
	var offsetMs float64
	for i, st := range steps {
		lengthMs := unit * timing.steps(steps, i)
		for _, p := range st.Pitches {
			plan.Triples = append(plan.Triples, Triple{
				Index:    st.Index,
				Pitch:    p,
				Start:    msToDuration(offsetMs),
				Duration: msToDuration(lengthMs),
			})
		}
		offsetMs += lengthMs
	}
	plan.Length = msToDuration(offsetMs)
	return plan
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
