package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/tabplay-go"
	"github.com/cbegin/tabplay-go/internal/tab"
)

var (
	renderInput     tabInput
	renderOut       string
	renderAll       bool
	renderDir       string
	renderMetronome bool
)

func init() {
	renderInput.register(renderCmd)
	f := renderCmd.Flags()
	f.StringVarP(&renderOut, "out", "o", "", "output WAV path (default <name>.wav)")
	f.BoolVar(&renderAll, "all", false, "render every built-in exercise")
	f.StringVar(&renderDir, "dir", ".", "output directory for --all")
	f.BoolVar(&renderMetronome, "metronome", false, "mix in metronome clicks")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a tab to a 32-bit float WAV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if renderAll {
			return renderExercises(cmd)
		}
		text, name, err := renderInput.read()
		if err != nil {
			return err
		}
		out := renderOut
		if out == "" {
			out = name + ".wav"
		}
		if err := renderWAV(text, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
		return nil
	},
}

func renderExercises(cmd *cobra.Command) error {
	if err := os.MkdirAll(renderDir, 0o755); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(cmd.Context())
	for _, name := range tab.ExerciseNames() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := tab.ExerciseText(name)
			if err != nil {
				return err
			}
			path := filepath.Join(renderDir, name+".wav")
			if err := renderWAV(text, path); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			logger.Info("rendered exercise", zap.String("name", name), zap.String("path", path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files to %s\n", len(tab.ExerciseNames()), renderDir)
	return nil
}

func renderWAV(text, path string) error {
	_, _, plan, err := compileText(text)
	if err != nil {
		return err
	}
	samples := tabplay.RenderPlan(plan, cfg.Audio.SampleRate, renderMetronome || cfg.Metronome)
	return os.WriteFile(path, tabplay.EncodeWAVFloat32LE(samples, cfg.Audio.SampleRate, 2), 0o644)
}
