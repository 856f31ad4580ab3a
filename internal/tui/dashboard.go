package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/probewatch/internal/mode"
	"github.com/muurk/probewatch/internal/service"
	"github.com/muurk/probewatch/internal/table"
)

// RefreshInterval is how often the dashboard polls the daemon.
const RefreshInterval = 250 * time.Millisecond

// Source is what the dashboard displays.
type Source interface {
	Snapshot() service.Snapshot
	Table() *table.Table
}

type keyMap struct {
	Toggle key.Binding
	Help   key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Toggle, k.Help, k.Quit}}
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "toggle mode"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type tickMsg time.Time

// Model is the dashboard.
type Model struct {
	src     Source
	press   func()
	version string

	snap    service.Snapshot
	entries []table.Entry
	presses int

	spinner spinner.Model
	help    help.Model
	keys    keyMap
	width   int
}

// New creates a dashboard for src. press is called for every toggle key.
func New(src Source, press func(), version string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := Model{
		src:     src,
		press:   press,
		version: version,
		spinner: s,
		help:    help.New(),
		keys:    defaultKeys(),
		width:   terminalWidth(),
	}
	m.refresh()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) refresh() {
	m.snap = m.src.Snapshot()
	if tbl := m.src.Table(); tbl != nil {
		m.entries = tbl.Snapshot()
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = min(max(msg.Width, MinTerminalWidth), MaxContentWidth)
		m.help.Width = m.width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Toggle):
			m.presses++
			if m.press != nil {
				m.press()
			}
			return m, nil
		}

	case tickMsg:
		m.refresh()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("probewatch " + m.version))
	b.WriteString("\n")

	var status strings.Builder
	status.WriteString(row("Mode", m.renderMode()))
	status.WriteString(row("Link", m.snap.Link.State.String()))
	if m.snap.Link.SSID != "" {
		status.WriteString(row("Network", m.snap.Link.SSID))
	}
	if m.snap.Link.LastAddress.IsValid() {
		status.WriteString(row("Address", m.snap.Link.LastAddress.String()))
	}
	web := "stopped"
	if m.snap.WebRunning {
		web = "serving"
	}
	status.WriteString(row("Web", web))
	status.WriteString(row("Reconnects", fmt.Sprint(m.snap.Link.Reconnects)))
	status.WriteString(row("Scans", fmt.Sprint(m.snap.Scan.Cycles)))
	if m.snap.Recoveries > 0 {
		status.WriteString(row("Recoveries", fmt.Sprint(m.snap.Recoveries)))
	}
	if m.snap.LastError != "" {
		status.WriteString(row("Last error", errorStyle.Render(m.snap.LastError)))
	}
	b.WriteString(boxStyle(m.width).Render(strings.TrimRight(status.String(), "\n")))
	b.WriteString("\n")

	b.WriteString(m.renderTable())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderMode() string {
	if m.snap.Transitioning {
		return m.spinner.View() + " " + transitionStyle.Render("switching from "+m.snap.Mode.String())
	}
	if m.snap.Mode == mode.Connected {
		return connectedModeStyle.Render("connected")
	}
	return scanModeStyle.Render("scan")
}

func (m Model) renderTable() string {
	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf(" %-20s %-17s %4s %6s", "SSID", "BSSID", "CH", "RSSI")))
	b.WriteString("\n")
	if len(m.entries) == 0 {
		b.WriteString(mutedStyle.Render(" no access points recorded yet"))
		b.WriteString("\n")
		return b.String()
	}
	for i, e := range m.entries {
		if i == maxTableRows {
			b.WriteString(mutedStyle.Render(fmt.Sprintf(" ... %d more", len(m.entries)-maxTableRows)))
			b.WriteString("\n")
			break
		}
		ssid := e.SSID
		if ssid == "" {
			ssid = "<hidden>"
		}
		b.WriteString(valueStyle.Render(fmt.Sprintf(" %-20.20s %-17s %4d %6d", ssid, e.BSSID, e.Channel, e.RSSI)))
		b.WriteString("\n")
	}
	return b.String()
}

func row(k, v string) string {
	return keyStyle.Render(k+":") + valueStyle.Render(v) + "\n"
}

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, src Source, press func(), version string) error {
	p := tea.NewProgram(New(src, press, version), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
