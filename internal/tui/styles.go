package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Current directory in the prompt
	dirStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#6adf91"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	// Echoed "$ <line>" rows in the output pane
	echoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	stderrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff6b6b"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// Completion candidates
	matchStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	matchDirStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)
	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(lipgloss.Color("238"))
)
