package tab

import (
	"strings"
	"unicode/utf8"
)

// ParseOptions selects how cells are read.
type ParseOptions struct {
	// MultiDigit reads a run of digits on one string as a single fret at
	// the column where the run starts, so "12" is fret 12. Runs longer than
	// MaxFretDigits are rejected.
	MultiDigit bool
}

// MaxFretDigits bounds a fret number in multi-digit mode.
const MaxFretDigits = 2

// Parse reads a six-row tab from text with single-digit cells. Blank lines
// before, between and after the rows are ignored.
func Parse(text string) (*Tab, error) {
	return ParseWith(text, ParseOptions{})
}

// ParseWith is Parse with explicit options.
func ParseWith(text string, opts ParseOptions) (*Tab, error) {
	lines := make([]string, 0, Strings)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r \t")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return ParseLinesWith(lines, opts)
}

// ParseLines reads a tab given one line per string, highest string first.
//
// Columns are characters, not bytes. Each cell holds one digit, so only
// frets 0-9 are representable and "12" reads as a 1 followed by a 2 in the
// next column. ParseLinesWith can read multi-digit frets instead.
func ParseLines(lines []string) (*Tab, error) {
	return ParseLinesWith(lines, ParseOptions{})
}

// ParseLinesWith is ParseLines with explicit options.
func ParseLinesWith(lines []string, opts ParseOptions) (*Tab, error) {
	if len(lines) != Strings {
		return nil, &FormatError{Row: -1, Want: Strings, Got: len(lines), Reason: "expected 6 rows"}
	}
	t := &Tab{}
	var cells [Strings][]rune
	for i, line := range lines {
		if !utf8.ValidString(line) {
			return nil, &FormatError{Row: i, Reason: "is not valid UTF-8"}
		}
		r := []rune(line)
		if len(r) < LabelWidth {
			return nil, &FormatError{Row: i, Want: LabelWidth, Got: len(r), Reason: "is shorter than its label"}
		}
		t.Labels[i] = string(r[:LabelWidth])
		t.Rows[i] = string(r[LabelWidth:])
		cells[i] = r[LabelWidth:]
	}
	t.Width = len(cells[0])
	for i := 1; i < Strings; i++ {
		if len(cells[i]) != t.Width {
			return nil, &FormatError{Row: i, Want: t.Width, Got: len(cells[i]), Reason: "length differs from row 0"}
		}
	}

	var events []Event
	if opts.MultiDigit {
		var err error
		if events, err = multiDigitEvents(&cells, t.Width); err != nil {
			return nil, err
		}
	} else {
		events = singleDigitEvents(&cells, t.Width)
	}
	t.Events = events
	return t, nil
}

func singleDigitEvents(cells *[Strings][]rune, width int) []Event {
	events := make([]Event, 0, width/2)
	for pos := 0; pos < width; pos++ {
		var notes []Note
		for str := 0; str < Strings; str++ {
			ch := cells[str][pos]
			if isDigit(ch) {
				notes = append(notes, Note{String: str, Fret: int(ch - '0')})
			}
		}
		if len(notes) > 0 {
			events = append(events, Event{Position: pos, Notes: notes})
		}
	}
	return events
}

func multiDigitEvents(cells *[Strings][]rune, width int) ([]Event, error) {
	// frets[str][pos] holds the fret of a run starting at pos, or -1.
	var frets [Strings][]int
	for str := 0; str < Strings; str++ {
		row := cells[str]
		frets[str] = make([]int, width)
		for pos := 0; pos < width; pos++ {
			frets[str][pos] = -1
		}
		for pos := 0; pos < width; {
			if !isDigit(row[pos]) {
				pos++
				continue
			}
			start, fret := pos, 0
			for pos < width && isDigit(row[pos]) {
				fret = fret*10 + int(row[pos]-'0')
				pos++
			}
			if pos-start > MaxFretDigits {
				return nil, &FormatError{Row: str, Want: MaxFretDigits, Got: pos - start, Reason: "has a fret number with too many digits"}
			}
			frets[str][start] = fret
		}
	}
	events := make([]Event, 0, width/3)
	for pos := 0; pos < width; pos++ {
		var notes []Note
		for str := 0; str < Strings; str++ {
			if f := frets[str][pos]; f >= 0 {
				notes = append(notes, Note{String: str, Fret: f})
			}
		}
		if len(notes) > 0 {
			events = append(events, Event{Position: pos, Notes: notes})
		}
	}
	return events, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// String renders the tab back to its six labelled rows.
func (t *Tab) String() string {
	var b strings.Builder
	for i := 0; i < Strings; i++ {
		b.WriteString(t.Labels[i])
		b.WriteString(t.Rows[i])
		if i < Strings-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
