package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbegin/tabplay-go/internal/tabimage"
)

var (
	imageInput     tabInput
	imageOut       string
	imageHighlight int
)

func init() {
	imageInput.register(imageCmd)
	f := imageCmd.Flags()
	f.StringVarP(&imageOut, "out", "o", "", "output PNG path (default <name>.png)")
	f.IntVar(&imageHighlight, "highlight", -1, "grid column to highlight (-1 for none)")
	rootCmd.AddCommand(imageCmd)
}

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Render a tab to a PNG image",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, name, err := imageInput.read()
		if err != nil {
			return err
		}
		t, _, _, err := compileText(text)
		if err != nil {
			return err
		}
		out := imageOut
		if out == "" {
			out = name + ".png"
		}
		if err := tabimage.SavePNG(out, t, imageHighlight); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
		return nil
	},
}
