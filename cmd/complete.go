package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var completeJSON bool

var completeCmd = &cobra.Command{
	Use:   "complete <input line>",
	Short: "Print path completions for the last word of a line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		a := &app{sess: sess}
		r := a.newResolver()
		defer a.close()

		res := r.Resolve(args[0])
		out := cmd.OutOrStdout()
		if completeJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		for _, m := range res.Matches {
			if m.IsDir {
				fmt.Fprintln(out, m.Name+"/")
			} else {
				fmt.Fprintln(out, m.Name)
			}
		}
		return nil
	},
}

func init() {
	completeCmd.Flags().BoolVar(&completeJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(completeCmd)
}
