package tui

import (
	"net/netip"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/probewatch/internal/link"
	"github.com/muurk/probewatch/internal/mode"
	"github.com/muurk/probewatch/internal/service"
	"github.com/muurk/probewatch/internal/table"
)

type fakeSource struct {
	snap service.Snapshot
	tbl  *table.Table
}

func (f *fakeSource) Snapshot() service.Snapshot { return f.snap }
func (f *fakeSource) Table() *table.Table        { return f.tbl }

func newSource(t *testing.T) *fakeSource {
	tbl := table.New(filepath.Join(t.TempDir(), "t.yaml"))
	tbl.Merge([]table.Observation{
		{SSID: "lab", BSSID: "02:00:00:00:01:01", Channel: 6, RSSI: -52},
		{BSSID: "02:00:00:00:04:01", Channel: 11, RSSI: -84},
	})
	return &fakeSource{
		snap: service.Snapshot{
			Mode: mode.Connected,
			Link: link.Status{
				State:       link.StateConnected,
				SSID:        "lab",
				LastAddress: netip.MustParseAddr("192.168.4.20"),
			},
			WebRunning: true,
		},
		tbl: tbl,
	}
}

func TestModel_View(t *testing.T) {
	m := New(newSource(t), nil, "v1.0.0")
	out := m.View()

	for _, want := range []string{"probewatch v1.0.0", "connected", "192.168.4.20", "serving", "02:00:00:00:01:01", "<hidden>"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ToggleKey(t *testing.T) {
	pressed := 0
	m := New(newSource(t), func() { pressed++ }, "dev")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if pressed != 2 {
		t.Errorf("press called %d times, want 2", pressed)
	}
	if next.(Model).presses != 2 {
		t.Errorf("presses = %d", next.(Model).presses)
	}
}

func TestModel_QuitKey(t *testing.T) {
	m := New(newSource(t), nil, "dev")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestModel_TickRefreshes(t *testing.T) {
	src := newSource(t)
	m := New(src, nil, "dev")

	src.snap.Mode = mode.Scan
	src.snap.Transitioning = true
	next, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Error("tick not rescheduled")
	}
	if !strings.Contains(next.View(), "switching from scan") {
		t.Error("transition not shown after refresh")
	}
}

func TestModel_EmptyTable(t *testing.T) {
	src := newSource(t)
	src.tbl.Clear()
	src.snap = service.Snapshot{Mode: mode.Scan}
	out := New(src, nil, "dev").View()
	if !strings.Contains(out, "no access points recorded yet") {
		t.Error("empty table placeholder missing")
	}
	if strings.Contains(out, "Address") {
		t.Error("address shown without a lease")
	}
}
