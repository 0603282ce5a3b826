package tab

import "fmt"

// Strings is the number of rows in a guitar tab grid.
const Strings = 6

// LabelWidth is the string-name prefix ("e|", "B|", ...) stripped from each row.
const LabelWidth = 2

type Note struct {
	String int
	Fret   int
}

// Event is one grid column holding at least one fretted or open note.
// Several notes in one event are struck together.
type Event struct {
	Position int
	Notes    []Note
}

type Tab struct {
	Events []Event
	Width  int             // row length in characters after the label is stripped
	Rows   [Strings]string // stripped rows, kept for display
	Labels [Strings]string // label prefixes as written
}

// FormatError reports a grid that cannot be read as six equal rows.
type FormatError struct {
	Row    int // offending row, -1 when the whole grid is at fault
	Want   int
	Got    int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("tab format: %s", e.Reason)
	}
	return fmt.Sprintf("tab format: row %d %s (want %d, got %d)", e.Row, e.Reason, e.Want, e.Got)
}
