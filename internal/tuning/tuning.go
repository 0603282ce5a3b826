package tuning

import (
	"fmt"
	"sort"
	"strings"
)

// Strings is the number of strings every table covers.
const Strings = 6

// Table holds the open-string pitch of each string as a MIDI note number.
// Index 0 is the highest-pitched string, matching the top row of a tab.
type Table [Strings]int

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var tables = map[string]Table{
	"standard":       {64, 59, 55, 50, 45, 40}, // E4 B3 G3 D3 A2 E2
	"drop_d":         {64, 59, 55, 50, 45, 38},
	"drop_c":         {62, 57, 53, 48, 43, 36},
	"half_step_down": {63, 58, 54, 49, 44, 39},
}

// Standard is the E A D G B E tuning.
var Standard = tables["standard"]

// ConfigError reports a tuning name that has no table.
type ConfigError struct {
	Name string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unknown tuning %q (expected one of %s)", e.Name, strings.Join(Names(), ", "))
}

// IndexError reports a string index outside 0-5 or a negative fret.
type IndexError struct {
	String int
	Fret   int
}

func (e *IndexError) Error() string {
	if e.String < 0 || e.String >= Strings {
		return fmt.Sprintf("string index %d out of range 0-%d", e.String, Strings-1)
	}
	return fmt.Sprintf("fret %d on string %d is negative", e.Fret, e.String)
}

// Lookup returns the table registered under name. Matching ignores case and
// treats spaces and hyphens as underscores, so "Drop D" finds drop_d.
func Lookup(name string) (Table, error) {
	t, ok := tables[normalize(name)]
	if !ok {
		return Table{}, &ConfigError{Name: name}
	}
	return t, nil
}

// Names returns the registered tuning names in sorted order.
func Names() []string {
	out := make([]string, 0, len(tables))
	for name := range tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the pitch sounded by fret on the given string.
func (t Table) Resolve(str, fret int) (int, error) {
	if str < 0 || str >= Strings || fret < 0 {
		return 0, &IndexError{String: str, Fret: fret}
	}
	return t[str] + fret, nil
}

// NoteName spells a MIDI pitch with sharps and octave, e.g. 64 -> "E4".
func NoteName(pitch int) string {
	octave := pitch/12 - 1
	idx := pitch % 12
	if idx < 0 {
		idx += 12
		octave--
	}
	return fmt.Sprintf("%s%d", noteNames[idx], octave)
}

// PitchClassName spells a pitch without its octave, e.g. 64 -> "E".
func PitchClassName(pitch int) string {
	return noteNames[((pitch%12)+12)%12]
}

// String spells the table from low to high string, the way players read a tuning.
func (t Table) String() string {
	parts := make([]string, Strings)
	for i := range t {
		parts[i] = PitchClassName(t[Strings-1-i])
	}
	return strings.Join(parts, " ")
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	return name
}
