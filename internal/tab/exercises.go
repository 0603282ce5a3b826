package tab

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var exercises = map[string][]string{
	"default": {
		"e|--0-----0-----0-----0-----|",
		"B|----3-----3-----3-----3---|",
		"G|------0-----0-----0-----0-|",
		"D|--------------------------|",
		"A|--------------------------|",
		"E|--3-----3-----3-----3-----|",
	},
	"chromatic": {
		"e|--1--2--3--4--5--4--3--2--1--------------|",
		"B|--1--2--3--4--5--4--3--2--1--------------|",
		"G|--1--2--3--4--5--4--3--2--1--------------|",
		"D|--1--2--3--4--5--4--3--2--1--------------|",
		"A|--1--2--3--4--5--4--3--2--1--------------|",
		"E|--1--2--3--4--5--4--3--2--1--------------|",
	},
	"pentatonic": {
		"e|--5--8--5--8--5--8--5--8-----------------|",
		"B|--5--8--5--8--5--8--5--8-----------------|",
		"G|--5--7--5--7--5--7--5--7-----------------|",
		"D|--5--7--5--7--5--7--5--7-----------------|",
		"A|--5--7--5--7--5--7--5--7-----------------|",
		"E|--5--8--5--8--5--8--5--8-----------------|",
	},
	"chords": {
		"e|--0-----0-----2-----3-----0--------------|",
		"B|--1-----0-----3-----0-----1--------------|",
		"G|--0-----0-----2-----0-----2--------------|",
		"D|--2-----0-----0-----0-----2--------------|",
		"A|--3-----2-----------2-----0--------------|",
		"E|--------3-----------3--------------------|",
	},
}

var ErrUnknownExercise = errors.New("unknown exercise")

// ExerciseNames lists the built-in practice tabs.
func ExerciseNames() []string {
	names := make([]string, 0, len(exercises))
	for name := range exercises {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExerciseText returns the raw text of a built-in tab.
func ExerciseText(name string) (string, error) {
	lines, ok := exercises[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownExercise, name)
	}
	return strings.Join(lines, "\n"), nil
}

// Exercise returns a built-in tab, parsed.
func Exercise(name string) (*Tab, error) {
	text, err := ExerciseText(name)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}
