package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbegin/tabplay-go/internal/tab"
)

func init() {
	rootCmd.AddCommand(exercisesCmd)
}

var exercisesCmd = &cobra.Command{
	Use:   "exercises [name]",
	Short: "List the built-in exercises, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for _, name := range tab.ExerciseNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}
		text, err := tab.ExerciseText(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}
