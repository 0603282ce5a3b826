package schedule

import (
	"testing"
	"time"

	"github.com/cbegin/tabplay-go/internal/tab"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

func TestDurationMs(t *testing.T) {
	cases := []struct {
		bpm       float64
		noteValue int
		want      float64
	}{
		{120, 4, 500},
		{120, 8, 250},
		{120, 16, 125},
		{100, 4, 600},
		{60, 2, 2000},
		{60, 4, 1000},
	}
	for _, tc := range cases {
		if got := DurationMs(tc.bpm, tc.noteValue); got != tc.want {
			t.Fatalf("DurationMs(%v, %d) = %v, want %v", tc.bpm, tc.noteValue, got, tc.want)
		}
	}
	if got := Duration(120, 8); got != 250*time.Millisecond {
		t.Fatalf("Duration(120, 8) = %v", got)
	}
}

func TestParseSpacing(t *testing.T) {
	if s, err := ParseSpacing("columns"); err != nil || s != SpacingColumns {
		t.Fatalf("columns: %v %v", s, err)
	}
	if s, err := ParseSpacing(""); err != nil || s != SpacingEven {
		t.Fatalf("empty: %v %v", s, err)
	}
	if _, err := ParseSpacing("swing"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCheckNoteValue(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 16, 32} {
		if err := CheckNoteValue(n); err != nil {
			t.Fatalf("note value %d rejected: %v", n, err)
		}
	}
	for _, n := range []int{-1, 0, 3, 12, 64} {
		if err := CheckNoteValue(n); err == nil {
			t.Fatalf("note value %d accepted", n)
		}
	}
}

func mustSteps(t *testing.T, lines ...string) []Step {
	t.Helper()
	tb, err := tab.ParseLines(lines)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	steps, err := Resolve(tb, tuning.Standard)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	return steps
}

func TestResolvePitches(t *testing.T) {
	steps := mustSteps(t,
		"e|--0--5-|",
		"B|-------|",
		"G|-------|",
		"D|-------|",
		"A|-------|",
		"E|--0----|",
	)
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if got := steps[0].Pitches; len(got) != 2 || got[0] != 64 || got[1] != 40 {
		t.Fatalf("step 0 pitches = %v", got)
	}
	if got := steps[1].Pitches; len(got) != 1 || got[0] != 69 {
		t.Fatalf("step 1 pitches = %v", got)
	}
	if steps[1].Index != 1 || steps[1].Position != 5 {
		t.Fatalf("step 1 = %+v", steps[1])
	}
}

func TestBuildPlanEvenSpacing(t *testing.T) {
	steps := mustSteps(t,
		"e|--0--1------2--|",
		"B|---------------|",
		"G|---------------|",
		"D|---------------|",
		"A|---------------|",
		"E|---------------|",
	)
	plan := BuildPlan(steps, 120, DefaultTiming())
	if len(plan.Triples) != 3 {
		t.Fatalf("expected 3 triples, got %d", len(plan.Triples))
	}
	for i, tr := range plan.Triples {
		if tr.StartMs() != float64(i)*250 {
			t.Fatalf("triple %d start = %v", i, tr.StartMs())
		}
		if tr.DurationMs() != 250 {
			t.Fatalf("triple %d duration = %v", i, tr.DurationMs())
		}
		if tr.Pitch != 64+i {
			t.Fatalf("triple %d pitch = %d", i, tr.Pitch)
		}
	}
	if plan.Length != 750*time.Millisecond {
		t.Fatalf("length = %v", plan.Length)
	}
}

func TestBuildPlanColumnSpacing(t *testing.T) {
	steps := mustSteps(t,
		"e|--0--1-----2---|",
		"B|---------------|",
		"G|---------------|",
		"D|---------------|",
		"A|---------------|",
		"E|---------------|",
	)
	timing := Timing{NoteValue: 8, Spacing: SpacingColumns, ColumnsPerStep: 3}
	plan := BuildPlan(steps, 120, timing)
	wantStart := []float64{0, 250, 750}
	wantDur := []float64{250, 500, 250}
	for i, tr := range plan.Triples {
		if tr.StartMs() != wantStart[i] || tr.DurationMs() != wantDur[i] {
			t.Fatalf("triple %d = start %v dur %v, want %v %v", i, tr.StartMs(), tr.DurationMs(), wantStart[i], wantDur[i])
		}
	}
}

func TestBuildPlanChordSharesStart(t *testing.T) {
	steps := mustSteps(t,
		"e|--0--|",
		"B|--1--|",
		"G|--0--|",
		"D|--2--|",
		"A|--3--|",
		"E|-----|",
	)
	plan := BuildPlan(steps, 90, DefaultTiming())
	if len(plan.Triples) != 5 {
		t.Fatalf("expected 5 triples, got %d", len(plan.Triples))
	}
	for _, tr := range plan.Triples {
		if tr.Start != 0 || tr.Index != 0 {
			t.Fatalf("chord triple not at step 0: %+v", tr)
		}
	}
}

func TestBuildPlanRejectsZeroTempo(t *testing.T) {
	steps := mustSteps(t, "e|-0-|", "B|---|", "G|---|", "D|---|", "A|---|", "E|---|")
	if plan := BuildPlan(steps, 0, DefaultTiming()); len(plan.Triples) != 0 {
		t.Fatalf("expected empty plan at zero tempo")
	}
}
