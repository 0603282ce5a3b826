package theory

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cbegin/tabplay-go/internal/tuning"
)

// ErrInvalid is wrapped by every error caused by a bad name or position.
var ErrInvalid = errors.New("invalid generator input")

// ErrNotSevenNotes is returned for a three-notes-per-string request on a
// scale that does not have seven notes.
var ErrNotSevenNotes = fmt.Errorf("%w: 3nps requires 7-note scales", ErrInvalid)

// Scales maps a scale name to its intervals in semitones above the root.
var Scales = map[string][]int{
	"major":            {0, 2, 4, 5, 7, 9, 11},
	"minor":            {0, 2, 3, 5, 7, 8, 10},
	"pentatonic_major": {0, 2, 4, 7, 9},
	"pentatonic_minor": {0, 3, 5, 7, 10},
	"blues":            {0, 3, 5, 6, 7, 10},
	"phrygian":         {0, 1, 3, 5, 7, 8, 10},
	"lydian":           {0, 2, 4, 6, 7, 9, 11},
	"mixolydian":       {0, 2, 4, 5, 7, 9, 10},
	"dorian":           {0, 2, 3, 5, 7, 9, 10},
	"locrian":          {0, 1, 3, 5, 6, 8, 10},
	"harmonic_minor":   {0, 2, 3, 5, 7, 8, 11},
	"melodic_minor":    {0, 2, 3, 5, 7, 9, 11},
}

// minorScales take minor chord qualities on their degrees.
var minorScales = map[string]bool{
	"minor": true, "phrygian": true, "dorian": true, "locrian": true,
	"harmonic_minor": true, "melodic_minor": true,
}

var chordIntervals = map[string][]int{
	"maj":  {0, 4, 7},
	"min":  {0, 3, 7},
	"dim":  {0, 3, 6},
	"aug":  {0, 4, 8},
	"maj7": {0, 4, 7, 11},
	"min7": {0, 3, 7, 10},
	"dom7": {0, 4, 7, 10},
	"5":    {0, 7},
}

var majorQualities = [8]string{1: "maj", 2: "min", 3: "min", 4: "maj", 5: "maj", 6: "min", 7: "dim"}
var minorQualities = [8]string{1: "min", 2: "dim", 3: "maj", 4: "min", 5: "min", 6: "maj", 7: "maj"}

// Degree is a chord root within a progression. Flat degrees sit a semitone
// below the major-scale degree and are always major chords.
type Degree struct {
	N    int
	Flat bool
}

func (d Degree) String() string {
	if d.Flat {
		return fmt.Sprintf("b%d", d.N)
	}
	return fmt.Sprint(d.N)
}

// Progressions maps a progression name to its degrees.
var Progressions = map[string][]Degree{
	"blues_12bar":     {{N: 1}, {N: 1}, {N: 1}, {N: 1}, {N: 4}, {N: 4}, {N: 1}, {N: 1}, {N: 5}, {N: 4}, {N: 1}, {N: 5}},
	"pop_4chord":      {{N: 1}, {N: 5}, {N: 6}, {N: 4}},
	"rock_power":      {{N: 1}, {N: 4}, {N: 5}, {N: 5}},
	"jazz_251":        {{N: 2}, {N: 5}, {N: 1}},
	"metal_riff":      {{N: 1}, {N: 7, Flat: true}, {N: 6, Flat: true}, {N: 5}},
	"sad_progression": {{N: 6}, {N: 4}, {N: 1}, {N: 5}},
	"andalusian":      {{N: 7, Flat: true}, {N: 6, Flat: true}, {N: 5}, {N: 1}},
}

func ScaleNames() []string       { return sortedKeys(Scales) }
func ProgressionNames() []string { return sortedKeys(Progressions) }

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var flatNames = map[string]int{"DB": 1, "EB": 3, "GB": 6, "AB": 8, "BB": 10}

// ParseRoot reads a note name such as "E", "C#" or "Bb" as a pitch class.
func ParseRoot(name string) (int, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for pc := 0; pc < 12; pc++ {
		if tuning.PitchClassName(pc) == n {
			return pc, nil
		}
	}
	if pc, ok := flatNames[n]; ok {
		return pc, nil
	}
	return 0, fmt.Errorf("%w: unknown root %q", ErrInvalid, name)
}

// ScaleNotes returns the pitch classes of scale built on root, in scale order.
func ScaleNotes(root int, scale string) ([]int, error) {
	intervals, ok := Scales[scale]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scale %q (expected one of %s)", ErrInvalid, scale, strings.Join(ScaleNames(), ", "))
	}
	out := make([]int, len(intervals))
	for i, iv := range intervals {
		out[i] = (root + iv) % 12
	}
	return out, nil
}

// ScaleInfo describes a scale for display.
type ScaleInfo struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
	Count int    `json:"count"`
}

func DescribeScale(root int, scale string) (ScaleInfo, error) {
	notes, err := ScaleNotes(root, scale)
	if err != nil {
		return ScaleInfo{}, err
	}
	names := make([]string, len(notes))
	for i, pc := range notes {
		names[i] = tuning.PitchClassName(pc)
	}
	return ScaleInfo{
		Name:  tuning.PitchClassName(root) + " " + scale,
		Notes: strings.Join(names, ", "),
		Count: len(notes),
	}, nil
}

// Position is one fretted note on the neck. Course counts strings from the
// lowest (0) to the highest (5); Row converts it to a tab row.
type Position struct {
	Course int
	Fret   int
	Class  int // pitch class 0-11, C = 0
	Pitch  int
	Root   bool
	Finger int // 1-4 inside a box, 0 when unassigned
}

func (p Position) Row() int { return tuning.Strings - 1 - p.Course }

// Fretboard finds scale and chord shapes on a tuned neck.
type Fretboard struct {
	table tuning.Table
}

func NewFretboard(table tuning.Table) *Fretboard {
	return &Fretboard{table: table}
}

// Pitch returns the MIDI pitch at fret on course.
func (f *Fretboard) Pitch(course, fret int) int {
	return f.table[tuning.Strings-1-course] + fret
}

// ClassAt returns the pitch class at fret on course.
func (f *Fretboard) ClassAt(course, fret int) int {
	return f.Pitch(course, fret) % 12
}

func (f *Fretboard) position(course, fret, root int) Position {
	pc := f.ClassAt(course, fret)
	return Position{Course: course, Fret: fret, Class: pc, Pitch: f.Pitch(course, fret), Root: pc == root}
}

// ScalePositions returns every scale note between minFret and maxFret,
// lowest course first.
func (f *Fretboard) ScalePositions(root int, scale string, minFret, maxFret int) ([]Position, error) {
	notes, err := ScaleNotes(root, scale)
	if err != nil {
		return nil, err
	}
	var out []Position
	for course := 0; course < tuning.Strings; course++ {
		for fret := minFret; fret <= maxFret; fret++ {
			if slices.Contains(notes, f.ClassAt(course, fret)) {
				out = append(out, f.position(course, fret, root))
			}
		}
	}
	return out, nil
}

// rootFrets lists the frets 0-12 on the lowest course that sound root.
func (f *Fretboard) rootFrets(root int) []int {
	var out []int
	for fret := 0; fret <= 12; fret++ {
		if f.ClassAt(0, fret) == root {
			out = append(out, fret)
		}
	}
	return out
}

// baseFret picks the root fret for a 1-based position, clamped to the last
// root found.
func (f *Fretboard) baseFret(root, position int) (int, error) {
	if position < 1 {
		return 0, fmt.Errorf("%w: position %d must be 1 or more", ErrInvalid, position)
	}
	frets := f.rootFrets(root)
	if len(frets) == 0 {
		return 0, fmt.Errorf("%w: root %s not found on the lowest string", ErrInvalid, tuning.PitchClassName(root))
	}
	return frets[min(position-1, len(frets)-1)], nil
}

// Box returns the scale notes in a five-fret box that starts one fret below
// the chosen root on the lowest string.
func (f *Fretboard) Box(root int, scale string, position int) ([]Position, error) {
	notes, err := ScaleNotes(root, scale)
	if err != nil {
		return nil, err
	}
	base, err := f.baseFret(root, position)
	if err != nil {
		return nil, err
	}
	minFret, maxFret := max(0, base-1), base+4
	var out []Position
	for course := 0; course < tuning.Strings; course++ {
		for fret := minFret; fret <= maxFret; fret++ {
			if !slices.Contains(notes, f.ClassAt(course, fret)) {
				continue
			}
			p := f.position(course, fret, root)
			p.Finger = min(fret-minFret+1, 4)
			out = append(out, p)
		}
	}
	return out, nil
}

// ThreePerString walks a seven-note scale up the neck three notes per
// string, each string starting from the last fret of the one below.
func (f *Fretboard) ThreePerString(root int, scale string, position int) ([]Position, error) {
	notes, err := ScaleNotes(root, scale)
	if err != nil {
		return nil, err
	}
	if len(notes) != 7 {
		return nil, ErrNotSevenNotes
	}
	start, err := f.baseFret(root, position)
	if err != nil {
		return nil, err
	}
	var out []Position
	degree := 0
	for course := 0; course < tuning.Strings; course++ {
		search := start
		if course > 0 && len(out) > 0 {
			search = out[len(out)-1].Fret
		}
		for n := 0; n < 3; n++ {
			target := notes[degree%7]
			for fret := search; fret <= search+5; fret++ {
				if f.ClassAt(course, fret) != target {
					continue
				}
				p := f.position(course, fret, root)
				p.Finger = n + 1
				out = append(out, p)
				search = fret + 1
				degree++
				break
			}
		}
	}
	return out, nil
}

// ChordNotes returns the pitch classes of a chord. Unknown qualities are
// treated as major.
func ChordNotes(root int, quality string) []int {
	intervals, ok := chordIntervals[quality]
	if !ok {
		intervals = chordIntervals["maj"]
	}
	out := make([]int, len(intervals))
	for i, iv := range intervals {
		out[i] = (root + iv) % 12
	}
	return out
}

// Voicing picks, on each string, the chord tone closest to the root on the
// lowest string. Position 2 and up look for that root from fret 3*(position-1).
func (f *Fretboard) Voicing(root int, quality string, position int) []Position {
	tones := ChordNotes(root, quality)
	rootFret := 0
	for fret := 0; fret <= 22; fret++ {
		if f.ClassAt(0, fret) == root && (position <= 1 || fret >= (position-1)*3) {
			rootFret = fret
			break
		}
	}
	var out []Position
	for course := 0; course < tuning.Strings; course++ {
		best := -1
		for fret := max(0, rootFret-2); fret <= rootFret+5; fret++ {
			if !slices.Contains(tones, f.ClassAt(course, fret)) {
				continue
			}
			if best < 0 || abs(fret-rootFret) < abs(best-rootFret) {
				best = fret
			}
		}
		if best >= 0 {
			out = append(out, f.position(course, best, root))
		}
	}
	return out
}

// Chord is one chord of a progression.
type Chord struct {
	Root    int
	Quality string
	Degree  Degree
}

func (c Chord) Name() string { return tuning.PitchClassName(c.Root) + c.Quality }

// ProgressionChords spells a named progression in the key of root and scale.
func ProgressionChords(root int, scale, progression string) ([]Chord, error) {
	degrees, ok := Progressions[progression]
	if !ok {
		return nil, fmt.Errorf("%w: unknown progression %q (expected one of %s)", ErrInvalid, progression, strings.Join(ProgressionNames(), ", "))
	}
	notes, err := ScaleNotes(root, scale)
	if err != nil {
		return nil, err
	}
	qualities := majorQualities
	if minorScales[scale] {
		qualities = minorQualities
	}
	out := make([]Chord, 0, len(degrees))
	for _, d := range degrees {
		c := Chord{Degree: d, Quality: "maj"}
		if d.Flat {
			if d.N < 1 || d.N > 7 {
				return nil, fmt.Errorf("%w: flat degree %s out of range", ErrInvalid, d)
			}
			c.Root = (root + Scales["major"][d.N-1] + 11) % 12
		} else {
			if d.N < 1 || d.N > len(notes) {
				return nil, fmt.Errorf("%w: degree %s is outside the %d-note %s scale", ErrInvalid, d, len(notes), scale)
			}
			c.Root = notes[d.N-1]
			if q := qualities[d.N]; q != "" {
				c.Quality = q
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
