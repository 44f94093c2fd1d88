package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/quickterm/internal/dispatch"
)

var execCmd = &cobra.Command{
	Use:   "exec <command line>",
	Short: "Run one command line the way the popup does",
	Long: `Run one command line through the quickterm dispatcher without the popup.
Output is streamed as it arrives and quickterm exits with the command's code.
A leading "cd" changes only the simulated directory, exactly as in the popup.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		d := dispatch.New(sess, env)
		ex := d.Run(cmd.Context(), strings.Join(args, " "))

		var outcome dispatch.Outcome
		for ev := range ex.Events() {
			switch {
			case ev.Chunk != nil:
				w := cmd.OutOrStdout()
				if ev.Chunk.Stream == dispatch.Stderr {
					w = cmd.ErrOrStderr()
				}
				fmt.Fprint(w, ev.Chunk.Text)
			case ev.Outcome != nil:
				outcome = *ev.Outcome
			}
		}

		if outcome.ExitCode != 0 {
			// The command already reported its own failure.
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			return &ExitError{Code: outcome.ExitCode}
		}
		return nil
	},
}

func init() {
	execCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(execCmd)
}
