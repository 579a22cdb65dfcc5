package main

import (
	"fmt"
	"io"

	"github.com/dgnsrekt/koko/internal/voices"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var voicesFilter string

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Aliases: []string{"ls"},
	Short:   "List the available voices",
	Long:    paragraph(fmt.Sprintf("\n%s the voices in the catalog, grouped by language. Use --filter to fuzzy-search ids, names and languages.", keyword("List"))),
	Example: paragraph("koko voices\nkoko voices --filter british"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		n := writeVoices(cmd.OutOrStdout(), catalog, voicesFilter, viper.GetString("voices.default"))
		if n == 0 {
			return fmt.Errorf("no voices match %q", voicesFilter)
		}
		return nil
	},
}

// writeVoices prints the voices matching filter and returns how many were
// printed. The current voice is marked with an asterisk.
func writeVoices(w io.Writer, catalog *voices.Catalog, filter, current string) int {
	matches := catalog.Filter(filter)
	lang := ""
	for _, m := range matches {
		// Unfiltered output is grouped; fuzzy results keep their ranking.
		if filter == "" && m.Language != lang {
			if lang != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, keyword(m.Language))
			lang = m.Language
		}

		mark := " "
		if m.Voice.ID == current {
			mark = "*"
		}
		row := fmt.Sprintf("%s %s %s", mark, runewidth.FillRight(m.Voice.ID, 12), runewidth.FillRight(m.Voice.Name, 24))
		if filter != "" {
			row += " " + subtle(m.Language)
		}
		fmt.Fprintln(w, row)
	}
	return len(matches)
}

func init() {
	voicesCmd.Flags().StringVarP(&voicesFilter, "filter", "f", "", "fuzzy filter on id, name or language")
}
