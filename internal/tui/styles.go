package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Layout constants
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
	maxTableRows     = 8
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - connected, running
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors
	WarningColor = lipgloss.Color("#FFA500") // Orange - transitions
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true).
			PaddingLeft(1)

	keyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	scanModeStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	connectedModeStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	transitionStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(WarningColor)
)

func boxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(0, 1).
		Width(width - 2)
}

// terminalWidth returns the width of stdout clamped to the layout limits.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}
