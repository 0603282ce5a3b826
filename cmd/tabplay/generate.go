package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cbegin/tabplay-go/internal/theory"
)

var (
	genOpts = theory.DefaultOptions()
	genSeed int64
	genOut  string
	genList bool
)

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genOpts.Root, "root", genOpts.Root, "root note, e.g. E, F#, Bb")
	f.StringVar(&genOpts.Scale, "scale", genOpts.Scale, "scale name (see --list)")
	f.StringVar(&genOpts.Pattern, "pattern", genOpts.Pattern, "pattern name (see --list)")
	f.IntVar(&genOpts.Bars, "bars", genOpts.Bars, "number of bars, four notes each")
	f.IntVar(&genOpts.Position, "position", genOpts.Position, "neck position, 1 = lowest root on the low string")
	f.StringVar(&genOpts.Progression, "progression", genOpts.Progression, "chord progression for the progression pattern")
	f.Int64Var(&genSeed, "seed", 0, "seed for the random pattern (0 = time based)")
	f.StringVarP(&genOut, "out", "o", "", "write the tab to this file instead of stdout")
	f.BoolVar(&genList, "list", false, "list scales, patterns and progressions")
	rootCmd.AddCommand(generateCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a scale or riff practice tab",
	Long: `generate writes a practice tab from a root, a scale and a pattern. Frets
of 10 and up are written as two digits, so read the result back with
--multi-digit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if genList {
			fmt.Fprintf(out, "scales:       %s\n", strings.Join(theory.ScaleNames(), ", "))
			fmt.Fprintf(out, "patterns:     %s\n", strings.Join(theory.Patterns, ", "))
			fmt.Fprintf(out, "progressions: %s\n", strings.Join(theory.ProgressionNames(), ", "))
			return nil
		}
		opts := genOpts
		opts.Tuning = cfg.Tuning
		seed := genSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		opts.Rand = rand.New(rand.NewSource(seed))

		root, err := theory.ParseRoot(opts.Root)
		if err != nil {
			return err
		}
		info, err := theory.DescribeScale(root, opts.Scale)
		if err != nil {
			return err
		}
		text, err := theory.Generate(opts)
		if err != nil {
			return err
		}
		logger.Debug("generated tab",
			zap.String("scale", info.Name),
			zap.String("pattern", opts.Pattern),
			zap.Int64("seed", seed))

		if genOut == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", info.Name, info.Notes)
			fmt.Fprintln(out, text)
			return nil
		}
		if err := os.WriteFile(genOut, []byte(text+"\n"), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\nwrote %s\n", info.Name, info.Notes, genOut)
		return nil
	},
}
