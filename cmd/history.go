package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [query]",
	Short: "Print saved command history, or fuzzy matches for query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, _ := loadHistory()

		lines := hist.Entries()
		if len(args) == 1 {
			lines = hist.Search(args[0])
		}
		out := cmd.OutOrStdout()
		for _, l := range lines {
			fmt.Fprintln(out, l)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
