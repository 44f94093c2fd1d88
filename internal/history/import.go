package history

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// parser reads one shell's history format, oldest first.
type parser func(r io.Reader) ([]string, error)

var parsers = map[string]parser{
	"bash": parseBash,
	"zsh":  parseZsh,
	"fish": parseFish,
}

// ShellHistoryPath returns the default history file for shellName and
// whether the shell is supported.
func ShellHistoryPath(home, shellName string) (string, bool) {
	switch shellName {
	case "bash":
		return filepath.Join(home, ".bash_history"), true
	case "zsh":
		return filepath.Join(home, ".zsh_history"), true
	case "fish":
		return filepath.Join(home, ".local", "share", "fish", "fish_history"), true
	}
	return "", false
}

// ImportShell parses r in the history format of shellName. Unknown shells
// are read as bash, which is one command per line.
func ImportShell(shellName string, r io.Reader) ([]string, error) {
	p, ok := parsers[shellName]
	if !ok {
		p = parseBash
	}
	return p(r)
}

// ImportShellFile reads the user's shell history from its default location.
// A missing file is not an error.
func ImportShellFile(home, shellName string) ([]string, error) {
	path, ok := ShellHistoryPath(home, shellName)
	if !ok {
		path, _ = ShellHistoryPath(home, "bash")
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	cmds, err := ImportShell(shellName, f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cmds, nil
}

// parseBash reads ~/.bash_history. With HISTTIMEFORMAT set, a "#<epoch>"
// line precedes each command; those lines are skipped.
func parseBash(r io.Reader) ([]string, error) {
	var cmds []string
	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmds = append(cmds, line)
	}
	return cmds, scanner.Err()
}

// parseZsh reads ~/.zsh_history in extended (": <epoch>:<elapsed>;<cmd>")
// or plain form.
func parseZsh(r io.Reader) ([]string, error) {
	var cmds []string
	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ": ") {
			if semi := strings.IndexByte(line, ';'); semi > 0 && strings.IndexByte(line[2:semi], ':') > 0 {
				line = line[semi+1:]
			}
		}
		if line != "" {
			cmds = append(cmds, line)
		}
	}
	return cmds, scanner.Err()
}

// parseFish reads fish_history:
//
//	- cmd: <command>
//	  when: <epoch>
func parseFish(r io.Reader) ([]string, error) {
	var cmds []string
	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if cmd, ok := strings.CutPrefix(line, "- cmd: "); ok && cmd != "" {
			cmds = append(cmds, cmd)
		}
	}
	return cmds, scanner.Err()
}

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return s
}
