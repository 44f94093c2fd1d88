// Package tui provides the Bubble Tea quick-terminal popup.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/fakeyudi/quickterm/internal/complete"
	"github.com/fakeyudi/quickterm/internal/dispatch"
	"github.com/fakeyudi/quickterm/internal/history"
	"github.com/fakeyudi/quickterm/internal/logging"
	"github.com/fakeyudi/quickterm/internal/session"
)

var log = logging.ForComponent(logging.CompUI)

// Deps are the components the popup drives. Store may be nil, in which
// case history lives only for the lifetime of the popup.
type Deps struct {
	Session    *session.Session
	Dispatcher *dispatch.Dispatcher
	Resolver   *complete.Resolver
	History    *history.Log
	Store      history.Store
}

// ── Messages ────────────

// DirChangedMsg reports a new session directory.
type DirChangedMsg struct{ Dir string }

type chunkMsg struct {
	ex    *dispatch.Execution
	chunk dispatch.Chunk
}

type outcomeMsg struct {
	ex      *dispatch.Execution
	outcome dispatch.Outcome
}

// waitForEvent reads the next event of ex.
func waitForEvent(ex *dispatch.Execution) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ex.Events()
		if !ok {
			return nil
		}
		if ev.Outcome != nil {
			return outcomeMsg{ex: ex, outcome: *ev.Outcome}
		}
		return chunkMsg{ex: ex, chunk: *ev.Chunk}
	}
}

// ── Model ────────────────────

// completion is the candidate list shown after an ambiguous tab.
type completion struct {
	input    string // line the matches were resolved against
	result   complete.Result
	selected int    // -1 until tab cycles
	shown    string // input value while the list is current
}

// Model is the root Bubble Tea model for the popup.
type Model struct {
	deps Deps

	input    textinput.Model
	output   viewport.Model
	content  string
	expanded bool

	running *dispatch.Execution
	cancel  context.CancelFunc

	comp *completion
	dir  string

	width  int
	height int
	ready  bool
}

// New creates the popup model.
func New(d Deps) Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "type a command"
	ti.Focus()
	return Model{
		deps:  d,
		input: ti,
		dir:   d.Session.Dir(),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case DirChangedMsg:
		m.dir = msg.Dir
		return m, nil

	case chunkMsg:
		if msg.ex != m.running {
			return m, nil
		}
		m.write(msg.chunk.Text, msg.chunk.Stream)
		return m, waitForEvent(msg.ex)

	case outcomeMsg:
		if msg.ex != m.running {
			return m, nil
		}
		log.Debug("command finished", "id", msg.ex.ID, "exit", msg.outcome.ExitCode)
		m.running = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.dir = m.deps.Session.Dir()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.comp != nil {
		switch key {
		case "tab":
			if m.input.Value() == m.comp.shown {
				m.cycleCompletion()
				return m, nil
			}
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			if i := int(key[0] - '1'); i < len(m.comp.result.Matches) {
				m.setInput(complete.Apply(m.comp.input, m.comp.result, m.comp.result.Matches[i]))
				m.comp = nil
				return m, nil
			}
		}
	}

	switch key {
	case "esc":
		m.stop()
		return m, tea.Quit
	case "ctrl+c":
		if m.running != nil {
			m.cancel()
			return m, nil
		}
		return m, tea.Quit
	case "enter":
		m.comp = nil
		return m.submit()
	case "tab":
		m.requestCompletion()
		return m, nil
	case "up":
		m.comp = nil
		if line, ok := m.deps.History.Prev(m.input.Value()); ok {
			m.setInput(line)
		}
		return m, nil
	case "down":
		m.comp = nil
		if line, ok := m.deps.History.Next(); ok {
			m.setInput(line)
		}
		return m, nil
	case "ctrl+r":
		m.comp = nil
		if found := m.deps.History.Search(m.input.Value()); len(found) > 0 {
			m.setInput(found[0])
		}
		return m, nil
	case "ctrl+o":
		if m.content != "" {
			m.expanded = !m.expanded
			m.layout()
		}
		return m, nil
	case "ctrl+l":
		m.content = ""
		m.expanded = false
		m.output.SetContent("")
		m.layout()
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	m.comp = nil
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs the current line unless a command is still running.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.running != nil {
		return m, nil
	}
	line := m.input.Value()
	if strings.TrimSpace(line) == "" {
		return m, nil
	}
	if m.deps.History.Add(line) {
		m.persistHistory()
	}
	m.input.Reset()

	if m.content != "" && !strings.HasSuffix(m.content, "\n") {
		m.content += "\n"
	}
	m.content += echoStyle.Render("$ "+line) + "\n"
	m.refreshOutput()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = m.deps.Dispatcher.Run(ctx, line)
	return m, waitForEvent(m.running)
}

// stop cancels any running command before the popup closes.
func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) persistHistory() {
	if m.deps.Store == nil {
		return
	}
	if err := m.deps.Store.Save(m.deps.History.Entries()); err != nil {
		log.Warn("saving history", "error", err)
	}
}

func (m *Model) requestCompletion() {
	m.comp = nil
	input := m.input.Value()
	res := m.deps.Resolver.Resolve(input)
	switch len(res.Matches) {
	case 0:
		return
	case 1:
		m.setInput(complete.Apply(input, res, res.Matches[0]))
		return
	}
	m.setInput(complete.Extend(input, res))
	m.comp = &completion{input: input, result: res, selected: -1, shown: m.input.Value()}
}

func (m *Model) cycleCompletion() {
	c := m.comp
	c.selected = (c.selected + 1) % len(c.result.Matches)
	m.setInput(complete.Apply(c.input, c.result, c.result.Matches[c.selected]))
	c.shown = m.input.Value()
}

func (m *Model) setInput(s string) {
	m.input.SetValue(s)
	m.input.CursorEnd()
}

// write appends command output to the pane, expanding it on first output.
func (m *Model) write(text string, stream dispatch.Stream) {
	if text == "" {
		return
	}
	if stream == dispatch.Stderr {
		text = styleLines(text, stderrStyle)
	}
	m.content += text
	if !m.expanded {
		m.expanded = true
		m.layout()
	}
	m.refreshOutput()
}

func (m *Model) refreshOutput() {
	m.output.SetContent(m.content)
	m.output.GotoBottom()
}

// styleLines renders each line separately so styling never spans newlines.
func styleLines(text string, st lipgloss.Style) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = st.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

// ── Layout ────────────────────

func (m *Model) layout() {
	m.input.Width = m.width - runewidth.StringWidth(m.promptText()) - 1
	// prompt(1) + completions(1) + pane border(1)
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	if m.output.Width == 0 {
		m.output = viewport.New(m.width, h)
		m.output.SetContent(m.content)
		m.output.GotoBottom()
		return
	}
	m.output.Width = m.width
	m.output.Height = h
}

// promptText is the undecorated prompt: the shortened directory and "$ ".
func (m Model) promptText() string {
	return shortDir(m.dir, m.deps.Session.Home(), m.width/3) + " $ "
}

// shortDir abbreviates home to "~" and trims the directory from the left
// to fit max display cells.
func shortDir(dir, home string, max int) string {
	d := dir
	if home != "" {
		if d == home {
			d = "~"
		} else if rel, ok := strings.CutPrefix(d, home+string(filepath.Separator)); ok {
			d = "~" + string(filepath.Separator) + rel
		}
	}
	if max < 8 {
		max = 8
	}
	w := runewidth.StringWidth(d)
	if w <= max {
		return d
	}
	rs := []rune(d)
	w++ // ellipsis
	i := 0
	for i < len(rs) && w > max {
		w -= runewidth.RuneWidth(rs[i])
		i++
	}
	return "…" + string(rs[i:])
}

func (m Model) View() string {
	d := shortDir(m.dir, m.deps.Session.Home(), m.width/3)
	prompt := dirStyle.Render(d) + promptStyle.Render(" $ ") + m.input.View()
	if m.running != nil {
		prompt += dimStyle.Render("  running…")
	}

	rows := []string{prompt, m.completionRow()}
	if m.expanded && m.ready {
		rows = append(rows, paneStyle.Width(m.width).Render(m.output.View()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) completionRow() string {
	if m.comp == nil {
		return ""
	}
	var parts []string
	for i, match := range m.comp.result.Matches {
		name := match.Name
		st := matchStyle
		if match.IsDir {
			name += "/"
			st = matchDirStyle
		}
		if i == m.comp.selected {
			st = selectedStyle
		}
		label := name
		if i < 9 {
			label = fmt.Sprintf("%d %s", i+1, name)
		}
		parts = append(parts, st.Render(label))
	}
	row := strings.Join(parts, "  ")
	if m.width > 0 && lipgloss.Width(row) > m.width {
		// Styled text cannot be cut safely; fall back to plain names.
		var plain []string
		for i, match := range m.comp.result.Matches {
			plain = append(plain, fmt.Sprintf("%d %s", i+1, match.Name))
		}
		row = dimStyle.Render(runewidth.Truncate(strings.Join(plain, "  "), m.width, "…"))
	}
	return row
}

// Run starts the popup and returns when the user quits.
func Run(d Deps) error {
	p := tea.NewProgram(New(d), tea.WithAltScreen())
	d.Session.OnChange(func(dir string) { p.Send(DirChangedMsg{Dir: dir}) })
	_, err := p.Run()
	return err
}
