package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cbegin/tabplay-go/internal/midifile"
)

var (
	midiInput tabInput
	midiOut   string
)

func init() {
	midiInput.register(midiCmd)
	midiCmd.Flags().StringVarP(&midiOut, "out", "o", "", "output MIDI path (default <name>.mid)")
	rootCmd.AddCommand(midiCmd)
}

var midiCmd = &cobra.Command{
	Use:   "midi",
	Short: "Export a tab as a Standard MIDI File",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, name, err := midiInput.read()
		if err != nil {
			return err
		}
		_, _, plan, err := compileText(text)
		if err != nil {
			return err
		}
		out := midiOut
		if out == "" {
			out = name + ".mid"
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := midifile.Write(f, plan); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d notes)\n", out, len(plan.Triples))
		return nil
	},
}
