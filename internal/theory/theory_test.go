package theory

import (
	"errors"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cbegin/tabplay-go/internal/schedule"
	"github.com/cbegin/tabplay-go/internal/tab"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

func classNames(pcs []int) []string {
	out := make([]string, len(pcs))
	for i, pc := range pcs {
		out[i] = tuning.PitchClassName(pc)
	}
	return out
}

func TestFretboardNotesAndPitches(t *testing.T) {
	fb := NewFretboard(tuning.Standard)
	open := make([]int, tuning.Strings)
	for c := range open {
		open[c] = fb.ClassAt(c, 0)
	}
	if diff := cmp.Diff([]string{"E", "A", "D", "G", "B", "E"}, classNames(open)); diff != "" {
		t.Fatalf("open strings (-want +got):\n%s", diff)
	}
	cases := []struct {
		course, fret int
		class        string
		pitch        int
	}{
		{0, 5, "A", 45},
		{0, 12, "E", 52},
		{5, 1, "F", 65},
		{5, 0, "E", 64},
		{0, 0, "E", 40},
	}
	for _, tc := range cases {
		if got := tuning.PitchClassName(fb.ClassAt(tc.course, tc.fret)); got != tc.class {
			t.Fatalf("course %d fret %d = %s, want %s", tc.course, tc.fret, got, tc.class)
		}
		if got := fb.Pitch(tc.course, tc.fret); got != tc.pitch {
			t.Fatalf("course %d fret %d pitch = %d, want %d", tc.course, tc.fret, got, tc.pitch)
		}
	}
}

func TestScaleNotes(t *testing.T) {
	cases := []struct {
		root, scale string
		want        []string
	}{
		{"E", "phrygian", []string{"E", "F", "G", "A", "B", "C", "D"}},
		{"A", "minor", []string{"A", "B", "C", "D", "E", "F", "G"}},
		{"C", "major", []string{"C", "D", "E", "F", "G", "A", "B"}},
		{"Bb", "pentatonic_major", []string{"A#", "C", "D", "F", "G"}},
	}
	for _, tc := range cases {
		root, err := ParseRoot(tc.root)
		if err != nil {
			t.Fatalf("root %s: %v", tc.root, err)
		}
		notes, err := ScaleNotes(root, tc.scale)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.root, tc.scale, err)
		}
		if diff := cmp.Diff(tc.want, classNames(notes)); diff != "" {
			t.Fatalf("%s %s (-want +got):\n%s", tc.root, tc.scale, diff)
		}
	}
	if _, err := ScaleNotes(4, "bebop"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unknown scale err = %v", err)
	}
	if _, err := ParseRoot("H"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unknown root err = %v", err)
	}
	if len(ScaleNames()) != 12 {
		t.Fatalf("expected 12 scales, got %v", ScaleNames())
	}
}

func TestDescribeScale(t *testing.T) {
	info, err := DescribeScale(4, "phrygian")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	want := ScaleInfo{Name: "E phrygian", Notes: "E, F, G, A, B, C, D", Count: 7}
	if info != want {
		t.Fatalf("info = %+v, want %+v", info, want)
	}
}

func TestThreePerStringNeedsSevenNotes(t *testing.T) {
	g := NewGenerator(tuning.Standard)
	if _, err := g.ThreePerString(9, "pentatonic_minor", 1, 2, true); !errors.Is(err, ErrNotSevenNotes) {
		t.Fatalf("err = %v, want ErrNotSevenNotes", err)
	}
	cols, err := g.ThreePerString(4, "phrygian", 1, 2, true)
	if err != nil {
		t.Fatalf("3nps: %v", err)
	}
	if len(cols) == 0 || len(cols) > 2*NotesPerBar {
		t.Fatalf("got %d columns", len(cols))
	}
}

func TestProgressionChords(t *testing.T) {
	chords, err := ProgressionChords(4, "minor", "pop_4chord")
	if err != nil {
		t.Fatalf("progression: %v", err)
	}
	var names []string
	for _, c := range chords {
		names = append(names, c.Name())
	}
	if diff := cmp.Diff([]string{"Emin", "Bmin", "Cmaj", "Amin"}, names); diff != "" {
		t.Fatalf("pop_4chord in E minor (-want +got):\n%s", diff)
	}

	chords, err = ProgressionChords(4, "phrygian", "metal_riff")
	if err != nil {
		t.Fatalf("progression: %v", err)
	}
	names = names[:0]
	for _, c := range chords {
		names = append(names, c.Name())
	}
	if diff := cmp.Diff([]string{"Emin", "Dmaj", "Cmaj", "Bmin"}, names); diff != "" {
		t.Fatalf("metal_riff in E phrygian (-want +got):\n%s", diff)
	}

	if _, err := ProgressionChords(4, "pentatonic_minor", "pop_4chord"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("degree 6 of a pentatonic scale should fail, got %v", err)
	}
	if _, err := ProgressionChords(4, "minor", "polka"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unknown progression err = %v", err)
	}
}

func TestPowerChordVoicing(t *testing.T) {
	cols := NewGenerator(tuning.Standard).PowerChords(4, 1, 1)
	if len(cols) != NotesPerBar {
		t.Fatalf("got %d columns, want %d", len(cols), NotesPerBar)
	}
	var pitches []int
	for _, p := range cols[0] {
		pitches = append(pitches, p.Pitch)
	}
	if diff := cmp.Diff([]int{40, 47, 52}, pitches); diff != "" {
		t.Fatalf("E5 voicing (-want +got):\n%s", diff)
	}
}

func TestRender(t *testing.T) {
	cols := []Column{
		{{Course: 0, Fret: 0}},
		{{Course: 5, Fret: 12}},
	}
	lines := strings.Split(Render(cols, 4), "\n")
	want := []string{
		"e|-----12--|",
		"B|---------|",
		"G|---------|",
		"D|---------|",
		"A|---------|",
		"E|-0-------|",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("render (-want +got):\n%s", diff)
	}

	five := make([]Column, 5)
	for i := range five {
		five[i] = Column{{Course: 0, Fret: 3}}
	}
	if got := strings.Count(strings.Split(Render(five, 4), "\n")[0], "|"); got != 3 {
		t.Fatalf("expected label, one bar line and the end line, got %d bars", got)
	}
}

// notesOf converts a generated column to the notes the parser reports.
func notesOf(col Column) []tab.Note {
	out := make([]tab.Note, len(col))
	for i, p := range col {
		out[i] = tab.Note{String: p.Row(), Fret: p.Fret}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String < out[j].String })
	return out
}

func TestGeneratedTabsReadBack(t *testing.T) {
	g := NewGenerator(tuning.Standard)
	for _, pattern := range Patterns {
		for _, position := range []int{1, 2} {
			opts := Options{Root: "A", Scale: "minor", Pattern: pattern, Bars: 2, Position: position, Rand: rand.New(rand.NewSource(7))}
			cols, err := g.Columns(opts)
			if err != nil {
				t.Fatalf("%s/%d: %v", pattern, position, err)
			}
			tb, err := tab.ParseWith(Render(cols, NotesPerBar), ParseOptions())
			if err != nil {
				t.Fatalf("%s/%d: parse: %v", pattern, position, err)
			}
			if len(tb.Events) != len(cols) {
				t.Fatalf("%s/%d: %d events for %d columns", pattern, position, len(tb.Events), len(cols))
			}
			for i, ev := range tb.Events {
				if diff := cmp.Diff(notesOf(cols[i]), ev.Notes); diff != "" {
					t.Fatalf("%s/%d column %d (-want +got):\n%s", pattern, position, i, diff)
				}
			}
		}
	}
}

func TestGeneratedNotesStayInScale(t *testing.T) {
	scales := []string{"major", "minor", "phrygian", "pentatonic_minor", "blues"}
	patterns := []string{"ascending", "descending", "pedal", "arpeggio", "random"}
	for _, scale := range scales {
		for _, root := range []string{"E", "A"} {
			pc, _ := ParseRoot(root)
			inScale, _ := ScaleNotes(pc, scale)
			for _, pattern := range patterns {
				for _, position := range []int{1, 2} {
					text, err := Generate(Options{Root: root, Scale: scale, Pattern: pattern, Bars: 2, Position: position})
					if err != nil {
						t.Fatalf("%s %s %s %d: %v", root, scale, pattern, position, err)
					}
					tb, err := tab.ParseWith(text, ParseOptions())
					if err != nil {
						t.Fatalf("%s %s %s %d: parse: %v", root, scale, pattern, position, err)
					}
					steps, err := schedule.Resolve(tb, tuning.Standard)
					if err != nil {
						t.Fatalf("resolve: %v", err)
					}
					for _, st := range steps {
						for _, p := range st.Pitches {
							if !slices.Contains(inScale, p%12) {
								t.Fatalf("%s %s %s %d: %s not in scale", root, scale, pattern, position, tuning.NoteName(p))
							}
						}
					}
				}
			}
		}
	}
}

func TestAscendingPhrygianOrder(t *testing.T) {
	text, err := Generate(Options{Root: "E", Scale: "phrygian", Pattern: "ascending", Bars: 2, Position: 1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if lines := strings.Split(text, "\n"); len(lines) != 6 || !strings.HasPrefix(lines[0], "e|") || !strings.HasPrefix(lines[5], "E|") {
		t.Fatalf("unexpected layout:\n%s", text)
	}
	tb, err := tab.ParseWith(text, ParseOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	steps, _ := schedule.Resolve(tb, tuning.Standard)
	var classes []int
	for _, st := range steps[:7] {
		classes = append(classes, st.Pitches[0]%12)
	}
	if diff := cmp.Diff([]int{4, 5, 7, 9, 11, 0, 2}, classes); diff != "" {
		t.Fatalf("first seven notes (-want +got):\n%s", diff)
	}
}

func TestRandomIsReproducible(t *testing.T) {
	gen := func() string {
		text, err := Generate(Options{Pattern: "random", Bars: 3, Rand: rand.New(rand.NewSource(42))})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		return text
	}
	if gen() != gen() {
		t.Fatalf("same seed produced different tabs")
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	cases := []Options{
		{Pattern: "sweep"},
		{Bars: -1},
		{Bars: MaxBars + 1},
		{Position: -2},
		{Scale: "bebop"},
	}
	for _, opts := range cases {
		if _, err := Generate(opts); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%+v: err = %v, want ErrInvalid", opts, err)
		}
	}
	var cfgErr *tuning.ConfigError
	if _, err := Generate(Options{Tuning: "open_g"}); !errors.As(err, &cfgErr) {
		t.Fatalf("unknown tuning err = %v", err)
	}
}
