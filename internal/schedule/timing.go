package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DurationMs returns the length of one note of the given value in
// milliseconds: a quarter note (noteValue 4) lasts 60000/bpm.
func DurationMs(bpm float64, noteValue int) float64 {
	return (60000 / bpm) * (4 / float64(noteValue))
}

// Duration is DurationMs as a time.Duration.
func Duration(bpm float64, noteValue int) time.Duration {
	return time.Duration(DurationMs(bpm, noteValue) * float64(time.Millisecond))
}

// CheckNoteValue accepts the note values 1, 2, 4, 8, 16 and 32.
func CheckNoteValue(n int) error {
	switch n {
	case 1, 2, 4, 8, 16, 32:
		return nil
	}
	return fmt.Errorf("note value %d must be a power of two between 1 and 32", n)
}

// Spacing selects how far apart consecutive events are played.
type Spacing int

const (
	// SpacingEven gives every event one step, ignoring gaps in the grid.
	SpacingEven Spacing = iota
	// SpacingColumns derives each gap from the column delta between events.
	SpacingColumns
)

func (s Spacing) String() string {
	switch s {
	case SpacingColumns:
		return "columns"
	default:
		return "even"
	}
}

// ParseSpacing maps "even" or "columns" to a Spacing.
func ParseSpacing(name string) (Spacing, error) {
	switch name {
	case "", "even":
		return SpacingEven, nil
	case "columns":
		return SpacingColumns, nil
	}
	return SpacingEven, errors.New("spacing must be even or columns")
}

// Timing holds the tempo-independent rhythm settings of a schedule.
type Timing struct {
	NoteValue      int // 4 = quarter, 8 = eighth, ...
	Spacing        Spacing
	ColumnsPerStep int // only used with SpacingColumns
}

func DefaultTiming() Timing {
	return Timing{NoteValue: 8, Spacing: SpacingEven, ColumnsPerStep: 3}
}

func (t Timing) normalized() Timing {
	if t.NoteValue <= 0 {
		t.NoteValue = 8
	}
	if t.ColumnsPerStep <= 0 {
		t.ColumnsPerStep = 3
	}
	return t
}

// steps returns how many steps the event at idx occupies before the next one
// starts. The last event always gets a single step.
func (t Timing) steps(seq []Step, idx int) float64 {
	if t.Spacing != SpacingColumns || idx+1 >= len(seq) {
		return 1
	}
	delta := seq[idx+1].Position - seq[idx].Position
	if delta <= 0 {
		return 1
	}
	return float64(delta) / float64(t.ColumnsPerStep)
}
