package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cbegin/tabplay-go/internal/tuning"
)

var parseInput tabInput

func init() {
	parseInput.register(parseCmd)
	rootCmd.AddCommand(parseCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Print the note events of a tab with their pitches and timing",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _, err := parseInput.read()
		if err != nil {
			return err
		}
		t, steps, plan, err := compileText(text)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d events over %d columns, %s tuning, %.0f bpm, %s total\n",
			len(steps), t.Width, cfg.Tuning, cfg.TempoBPM, plan.Length)
		starts := make(map[int]float64, len(steps))
		for _, tr := range plan.Triples {
			starts[tr.Index] = tr.StartMs()
		}
		for _, st := range steps {
			names := make([]string, len(st.Pitches))
			for i, p := range st.Pitches {
				names[i] = fmt.Sprintf("%s(%d)", tuning.NoteName(p), p)
			}
			fmt.Fprintf(out, "%4d  col %3d  %7.1fms  %s\n", st.Index, st.Position, starts[st.Index], strings.Join(names, " "))
		}
		return nil
	},
}
