package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/quickterm/internal/config"
	"github.com/fakeyudi/quickterm/internal/logging"
	"github.com/fakeyudi/quickterm/internal/shell"
	"github.com/fakeyudi/quickterm/internal/tui"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// env is the shell environment resolved once at startup.
var env shell.Environment

// startDir is the directory the session starts in; empty means home.
var startDir string

var rootCmd = &cobra.Command{
	Use:   "quickterm",
	Short: "A quick terminal popup for one-off shell commands",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)

		if err := logging.Init(logging.Config{
			Dir:    cfg.LogDir,
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
		}); err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}

		env, err = shell.Resolve(cfg.Shell)
		if err != nil {
			return fmt.Errorf("resolving shell: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(os.Stdin.Fd()) || !term.IsTerminal(os.Stdout.Fd()) {
			return errors.New("quickterm needs an interactive terminal; use \"quickterm exec\" from scripts")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return tui.Run(a.deps())
	},
}

// ExitError carries the exit code of a command run by "quickterm exec".
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command and exits with the command's code for exec,
// 1 on any other error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, rootCmd)
	stop()
	os.Exit(code)
}

// run executes root and maps the result to an exit code. The log file is
// closed on every path, including failures.
func run(ctx context.Context, root *cobra.Command) int {
	defer logging.Close()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&startDir, "dir", "", "start directory (default: home)")
}
