package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/fakeyudi/quickterm/internal/shell"
)

// Prober reports the directory a shell started in dir ends up in.
type Prober interface {
	Pwd(ctx context.Context, dir string) (string, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, dir string) (string, error)

func (f ProberFunc) Pwd(ctx context.Context, dir string) (string, error) {
	return f(ctx, dir)
}

// shellProber runs the platform pwd script through the configured shell.
type shellProber struct {
	env shell.Environment
}

func (p shellProber) Pwd(ctx context.Context, dir string) (string, error) {
	out, err := p.env.Command(ctx, dir, p.env.PwdScript).Output()
	if err != nil {
		return "", fmt.Errorf("pwd probe in %s: %w", dir, err)
	}
	// Startup files (.zshenv and friends) may print first; pwd is last.
	text := strings.TrimSpace(string(out))
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[i+1:])
	}
	return text, nil
}
