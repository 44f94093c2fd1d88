// Package shell resolves the platform shell, home directory and environment
// block once at startup. The dispatcher only ever spawns through the values
// held in an Environment.
package shell

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// waitDelay bounds how long Wait keeps reading output after cancellation.
const waitDelay = 500 * time.Millisecond

// Environment is the resolved process context every command runs with.
type Environment struct {
	ShellPath string   // absolute path or name looked up in PATH
	ShellArgs []string // placed between ShellPath and the command text
	PwdScript string   // prints the shell's working directory
	Home      string
	Environ   []string // KEY=VALUE pairs
}

// Resolve builds the Environment for this platform. override, when set,
// replaces the user's configured shell.
func Resolve(override string) (Environment, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Environment{}, err
	}
	if home == "" {
		return Environment{}, errors.New("home directory is not set")
	}
	env := forPlatform(runtime.GOOS, override, os.Getenv("SHELL"))
	env.Home = home
	env.Environ = os.Environ()
	return env, nil
}

// forPlatform picks the shell for goos. On Windows the script-hosting shell
// is used; elsewhere the override, then $SHELL, then /bin/sh.
func forPlatform(goos, override, loginShell string) Environment {
	if goos == "windows" {
		path := "powershell.exe"
		if override != "" {
			path = override
		}
		return Environment{
			ShellPath: path,
			ShellArgs: []string{"-NoProfile", "-Command"},
			PwdScript: "(Get-Location).Path",
		}
	}
	path := override
	if path == "" {
		path = loginShell
	}
	if path == "" {
		path = "/bin/sh"
	}
	return Environment{
		ShellPath: path,
		ShellArgs: []string{"-c"},
		PwdScript: "pwd",
	}
}

// Command returns an unstarted process that runs line through the shell in
// dir with the resolved environment.
func (e Environment) Command(ctx context.Context, dir, line string) *exec.Cmd {
	args := append(append([]string(nil), e.ShellArgs...), line)
	cmd := exec.CommandContext(ctx, e.ShellPath, args...)
	cmd.Dir = dir
	cmd.Env = withPWD(e.Environ, dir)
	cmd.WaitDelay = waitDelay
	killGroup(cmd)
	return cmd
}

// withPWD overrides PWD so shells that trust it report dir from pwd.
func withPWD(environ []string, dir string) []string {
	out := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if strings.HasPrefix(kv, "PWD=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PWD="+dir)
}

// Name returns the shell's base name without extension, e.g. "zsh".
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
