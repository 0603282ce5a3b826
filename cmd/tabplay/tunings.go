package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbegin/tabplay-go/internal/tuning"
)

func init() {
	rootCmd.AddCommand(tuningsCmd)
}

var tuningsCmd = &cobra.Command{
	Use:   "tunings",
	Short: "List the available tunings",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range tuning.Names() {
			table, _ := tuning.Lookup(name)
			marker := " "
			if name == cfg.Tuning {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-15s %s  %v\n", marker, name, table, table[:])
		}
	},
}
