package main

import (
	"fmt"
	"io"

	"github.com/dgnsrekt/koko/internal/stats"
	"github.com/dgnsrekt/koko/internal/textinput"
	"github.com/dgnsrekt/koko/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var estimateFile string

var estimateCmd = &cobra.Command{
	Use:   "estimate [TEXT|-]",
	Short: "Estimate narration and generation time",
	Long: paragraph(fmt.Sprintf("\n%s how long text takes to read aloud at the chosen speed, and roughly how long the engine needs to generate it.",
		keyword("Estimate"))),
	Example: paragraph("koko estimate \"A short sentence.\"\nkoko estimate --speed 1.5 --file chapter.md"),
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textinput.Read(textinput.Source{
			Args:  args,
			File:  utils.ExpandPath(estimateFile),
			Stdin: cmd.InOrStdin(),
		})
		if err != nil {
			return err
		}
		writeEstimate(cmd.OutOrStdout(), estimator().Estimate(text, viper.GetFloat64("speed")))
		return nil
	},
}

func writeEstimate(w io.Writer, s stats.Snapshot) {
	fmt.Fprintf(w, "Characters: %d\n", s.Characters)
	fmt.Fprintf(w, "Narration:  ~%s\n", s.Narration())
	fmt.Fprintf(w, "Generation: ~%s\n", s.Generation())
}

func init() {
	estimateCmd.Flags().StringVarP(&estimateFile, "file", "f", "", "read text from a text or Markdown file")
}
