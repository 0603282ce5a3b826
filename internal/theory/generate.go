package theory

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"

	"github.com/cbegin/tabplay-go/internal/tab"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

// Column is a group of positions struck together.
type Column []Position

// Patterns lists the generator patterns in display order.
var Patterns = []string{"ascending", "descending", "pedal", "arpeggio", "random", "3nps", "power_chords", "progression"}

// NotesPerBar is the number of columns per bar and per measure line.
const NotesPerBar = 4

// MaxBars bounds the length of a generated tab.
const MaxBars = 64

// Options selects what Generate writes. Zero fields take the defaults of
// DefaultOptions.
type Options struct {
	Root        string
	Scale       string
	Pattern     string
	Bars        int
	Position    int
	Tuning      string
	Progression string
	// Rand drives the random pattern. A nil Rand uses a source seeded with 1.
	Rand *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		Root:        "E",
		Scale:       "phrygian",
		Pattern:     "ascending",
		Bars:        4,
		Position:    1,
		Tuning:      "standard",
		Progression: "blues_12bar",
	}
}

// WithDefaults fills the zero fields of o from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Root == "" {
		o.Root = d.Root
	}
	if o.Scale == "" {
		o.Scale = d.Scale
	}
	if o.Pattern == "" {
		o.Pattern = d.Pattern
	}
	if o.Bars == 0 {
		o.Bars = d.Bars
	}
	if o.Position == 0 {
		o.Position = d.Position
	}
	if o.Tuning == "" {
		o.Tuning = d.Tuning
	}
	if o.Progression == "" {
		o.Progression = d.Progression
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(1))
	}
	return o
}

// Generator builds practice columns on one fretboard.
type Generator struct {
	board *Fretboard
}

func NewGenerator(table tuning.Table) *Generator {
	return &Generator{board: NewFretboard(table)}
}

func limit(cols []Column, bars int) []Column {
	if n := bars * NotesPerBar; len(cols) > n {
		return cols[:n]
	}
	return cols
}

func singles(ps []Position) []Column {
	cols := make([]Column, len(ps))
	for i, p := range ps {
		cols[i] = Column{p}
	}
	return cols
}

// Ascending plays the box from the lowest string up, low frets first.
func (g *Generator) Ascending(root int, scale string, position, bars int) ([]Column, error) {
	box, err := g.board.Box(root, scale, position)
	if err != nil {
		return nil, err
	}
	return limit(singles(box), bars), nil
}

// Descending plays the box from the highest string down, high frets first.
func (g *Generator) Descending(root int, scale string, position, bars int) ([]Column, error) {
	box, err := g.board.Box(root, scale, position)
	if err != nil {
		return nil, err
	}
	slices.Reverse(box)
	return limit(singles(box), bars), nil
}

// Pedal alternates a low root with each box note on the upper four strings.
func (g *Generator) Pedal(root int, scale string, position, bars int) ([]Column, error) {
	box, err := g.board.Box(root, scale, position)
	if err != nil || len(box) == 0 {
		return nil, err
	}
	pedal := box[0]
	if i := slices.IndexFunc(box, func(p Position) bool { return p.Root && p.Course <= 1 }); i >= 0 {
		pedal = box[i]
	} else if i := slices.IndexFunc(box, func(p Position) bool { return p.Root }); i >= 0 {
		pedal = box[i]
	}
	var cols []Column
	for _, p := range box {
		if p.Course >= 2 {
			cols = append(cols, Column{pedal}, Column{p})
		}
	}
	return limit(cols, bars), nil
}

// Arpeggio sweeps the root, third and fifth of the box up and back down.
func (g *Generator) Arpeggio(root int, scale string, position, bars int) ([]Column, error) {
	box, err := g.board.Box(root, scale, position)
	if err != nil {
		return nil, err
	}
	notes, err := ScaleNotes(root, scale)
	if err != nil {
		return nil, err
	}
	tones := []int{notes[0], notes[2], notes[4]}
	var arp []Position
	for _, p := range box {
		if slices.Contains(tones, p.Class) {
			arp = append(arp, p)
		}
	}
	cols := singles(arp)
	for i := len(arp) - 2; i > 0; i-- {
		cols = append(cols, Column{arp[i]})
	}
	return limit(cols, bars), nil
}

// Random wanders across neighbouring strings, picking box notes at random.
func (g *Generator) Random(root int, scale string, position, bars int, rng *rand.Rand) ([]Column, error) {
	box, err := g.board.Box(root, scale, position)
	if err != nil {
		return nil, err
	}
	var cols []Column
	course := 2
	for i := 0; i < bars*NotesPerBar; i++ {
		course = min(5, max(0, course+rng.Intn(5)-2))
		var choices []Position
		for _, p := range box {
			if p.Course == course {
				choices = append(choices, p)
			}
		}
		if len(choices) > 0 {
			cols = append(cols, Column{choices[rng.Intn(len(choices))]})
		}
	}
	return cols, nil
}

// ThreePerString plays the three-notes-per-string shape, ascending or not.
func (g *Generator) ThreePerString(root int, scale string, position, bars int, ascending bool) ([]Column, error) {
	shape, err := g.board.ThreePerString(root, scale, position)
	if err != nil {
		return nil, err
	}
	if !ascending {
		slices.Reverse(shape)
	}
	return limit(singles(shape), bars), nil
}

// powerChord keeps the lowest three strings of a fifth-chord voicing.
func (g *Generator) powerChord(root, position int) Column {
	var col Column
	for _, p := range g.board.Voicing(root, "5", position) {
		if p.Course <= 2 {
			col = append(col, p)
		}
	}
	return col
}

// PowerChords repeats a root, flat seven, root, fourth power-chord riff.
func (g *Generator) PowerChords(root int, position, bars int) []Column {
	riff := [4]int{0, 10, 0, 5}
	var cols []Column
	for i := 0; i < bars*NotesPerBar; i++ {
		if col := g.powerChord((root+riff[i%len(riff)])%12, position); len(col) > 0 {
			cols = append(cols, col)
		}
	}
	return cols
}

// Progression plays one power chord per chord of the named progression.
func (g *Generator) Progression(root int, scale, progression string, position int) ([]Column, error) {
	chords, err := ProgressionChords(root, scale, progression)
	if err != nil {
		return nil, err
	}
	var cols []Column
	for _, c := range chords {
		if col := g.powerChord(c.Root, position); len(col) > 0 {
			cols = append(cols, col)
		}
	}
	return cols, nil
}

// Columns runs the pattern named in opts.
func (g *Generator) Columns(opts Options) ([]Column, error) {
	opts = opts.WithDefaults()
	root, err := ParseRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	if _, err := ScaleNotes(root, opts.Scale); err != nil {
		return nil, err
	}
	if opts.Bars < 1 || opts.Bars > MaxBars {
		return nil, fmt.Errorf("%w: bars %d must be between 1 and %d", ErrInvalid, opts.Bars, MaxBars)
	}
	if opts.Position < 1 {
		return nil, fmt.Errorf("%w: position %d must be 1 or more", ErrInvalid, opts.Position)
	}
	switch opts.Pattern {
	case "ascending":
		return g.Ascending(root, opts.Scale, opts.Position, opts.Bars)
	case "descending":
		return g.Descending(root, opts.Scale, opts.Position, opts.Bars)
	case "pedal":
		return g.Pedal(root, opts.Scale, opts.Position, opts.Bars)
	case "arpeggio":
		return g.Arpeggio(root, opts.Scale, opts.Position, opts.Bars)
	case "random":
		return g.Random(root, opts.Scale, opts.Position, opts.Bars, opts.Rand)
	case "3nps":
		return g.ThreePerString(root, opts.Scale, opts.Position, opts.Bars, true)
	case "power_chords":
		return g.PowerChords(root, opts.Position, opts.Bars), nil
	case "progression":
		return g.Progression(root, opts.Scale, opts.Progression, opts.Position)
	}
	return nil, fmt.Errorf("%w: unknown pattern %q (expected one of %s)", ErrInvalid, opts.Pattern, strings.Join(Patterns, ", "))
}

var rowLabels = [tab.Strings]string{"e|", "B|", "G|", "D|", "A|", "E|"}

// Render writes columns as six tab rows, four characters per column with a
// bar line every notesPerBar columns. Every fret starts on the second cell of
// its column, so frets of 10 and up read back as one note with
// tab.ParseOptions{MultiDigit: true} and chords stay in one column.
func Render(cols []Column, notesPerBar int) string {
	if notesPerBar <= 0 {
		notesPerBar = NotesPerBar
	}
	var rows [tab.Strings]strings.Builder
	for i := range rows {
		rows[i].WriteString(rowLabels[i])
	}
	for ci, col := range cols {
		if ci > 0 && ci%notesPerBar == 0 {
			for i := range rows {
				rows[i].WriteString("-|--")
			}
		}
		frets := [tab.Strings]int{-1, -1, -1, -1, -1, -1}
		for _, p := range col {
			frets[p.Row()] = p.Fret
		}
		for i, f := range frets {
			switch {
			case f < 0:
				rows[i].WriteString("----")
			case f >= 10:
				fmt.Fprintf(&rows[i], "-%d-", f)
			default:
				fmt.Fprintf(&rows[i], "-%d--", f)
			}
		}
	}
	lines := make([]string, tab.Strings)
	for i := range rows {
		rows[i].WriteString("-|")
		lines[i] = rows[i].String()
	}
	return strings.Join(lines, "\n")
}

// Generate renders the tab text for opts.
func Generate(opts Options) (string, error) {
	opts = opts.WithDefaults()
	table, err := tuning.Lookup(opts.Tuning)
	if err != nil {
		return "", err
	}
	cols, err := NewGenerator(table).Columns(opts)
	if err != nil {
		return "", err
	}
	return Render(cols, NotesPerBar), nil
}

// ParseOptions are the options that read Generate output back.
func ParseOptions() tab.ParseOptions {
	return tab.ParseOptions{MultiDigit: true}
}
