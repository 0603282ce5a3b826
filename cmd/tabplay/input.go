package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cbegin/tabplay-go/internal/schedule"
	"github.com/cbegin/tabplay-go/internal/tab"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

// tabInput selects where a command reads its tab from. The inline text wins
// over a file, which wins over a named exercise.
type tabInput struct {
	file     string
	exercise string
	inline   string
}

func (in *tabInput) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&in.file, "file", "f", "", "path to a tab file")
	f.StringVarP(&in.exercise, "exercise", "e", "default", "built-in exercise name")
	f.StringVar(&in.inline, "tab", "", "inline tab text (rows separated by \\n)")
}

// read returns the tab text and a short name for it.
func (in *tabInput) read() (string, string, error) {
	if strings.TrimSpace(in.inline) != "" {
		return strings.ReplaceAll(in.inline, `\n`, "\n"), "inline", nil
	}
	if strings.TrimSpace(in.file) != "" {
		data, err := os.ReadFile(in.file)
		if err != nil {
			return "", "", err
		}
		name := strings.TrimSuffix(filepath.Base(in.file), filepath.Ext(in.file))
		return string(data), name, nil
	}
	text, err := tab.ExerciseText(in.exercise)
	if err != nil {
		return "", "", fmt.Errorf("%w (available: %s)", err, strings.Join(tab.ExerciseNames(), ", "))
	}
	return text, in.exercise, nil
}

// compileText parses text and lays it out under the loaded config.
func compileText(text string) (*tab.Tab, []schedule.Step, schedule.Plan, error) {
	table, err := tuning.Lookup(cfg.Tuning)
	if err != nil {
		return nil, nil, schedule.Plan{}, err
	}
	t, err := tab.ParseWith(text, cfg.ParseOptions())
	if err != nil {
		return nil, nil, schedule.Plan{}, err
	}
	steps, err := schedule.Resolve(t, table)
	if err != nil {
		return nil, nil, schedule.Plan{}, err
	}
	return t, steps, schedule.BuildPlan(steps, cfg.TempoBPM, cfg.Timing()), nil
}
