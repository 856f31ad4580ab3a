package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock(t *Table, ts ...time.Time) {
	i := 0
	t.now = func() time.Time {
		v := ts[i]
		if i < len(ts)-1 {
			i++
		}
		return v
	}
}

func TestMerge(t *testing.T) {
	tbl := New(filepath.Join(t.TempDir(), "table.yaml"))
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	fixedClock(tbl, t1, t2)

	added := tbl.Merge([]Observation{
		{SSID: "lab", BSSID: "AA:BB:CC:00:00:01", Channel: 6, RSSI: -60},
		{SSID: "guest", BSSID: "aa:bb:cc:00:00:02", Channel: 11, RSSI: -70},
	})
	if added != 2 {
		t.Errorf("first Merge() added = %d, want 2", added)
	}

	added = tbl.Merge([]Observation{
		{SSID: "", BSSID: "aa:bb:cc:00:00:01", Channel: 1, RSSI: -50},
	})
	if added != 0 {
		t.Errorf("second Merge() added = %d, want 0", added)
	}

	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}

	e := tbl.Snapshot()[0]
	if e.BSSID != "aa:bb:cc:00:00:01" {
		t.Fatalf("strongest entry = %s", e.BSSID)
	}
	if e.SSID != "lab" {
		t.Errorf("hidden SSID should not erase the known one, got %q", e.SSID)
	}
	if e.Channel != 1 || e.RSSI != -50 {
		t.Errorf("entry not updated: %+v", e)
	}
	if e.Seen != 2 {
		t.Errorf("Seen = %d, want 2", e.Seen)
	}
	if !e.FirstSeen.Equal(t1) || !e.LastSeen.Equal(t2) {
		t.Errorf("FirstSeen/LastSeen = %v/%v", e.FirstSeen, e.LastSeen)
	}
}

func TestMergeSkipsEmptyBSSID(t *testing.T) {
	tbl := New(filepath.Join(t.TempDir(), "table.yaml"))
	if added := tbl.Merge([]Observation{{SSID: "ghost", BSSID: "  "}}); added != 0 {
		t.Errorf("Merge() added = %d, want 0", added)
	}
	if tbl.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tbl.Len())
	}
}

func TestSnapshotOrder(t *testing.T) {
	tbl := New(filepath.Join(t.TempDir(), "table.yaml"))
	tbl.Merge([]Observation{
		{BSSID: "00:00:00:00:00:03", RSSI: -80},
		{BSSID: "00:00:00:00:00:02", RSSI: -40},
		{BSSID: "00:00:00:00:00:01", RSSI: -80},
	})

	snap := tbl.Snapshot()
	got := []string{snap[0].BSSID, snap[1].BSSID, snap[2].BSSID}
	want := []string{"00:00:00:00:00:02", "00:00:00:00:00:01", "00:00:00:00:00:03"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot() order = %v, want %v", got, want)
		}
	}

	// Snapshot is a copy.
	snap[0].SSID = "changed"
	if tbl.Snapshot()[0].SSID == "changed" {
		t.Error("Snapshot() returned shared entries")
	}
}

func TestLoadMissingFile(t *testing.T) {
	tbl := New(filepath.Join(t.TempDir(), "missing", "table.yaml"))
	tbl.Merge([]Observation{{BSSID: "00:00:00:00:00:01"}})

	if err := tbl.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tbl.Len() != 0 {
		t.Errorf("Len() after loading missing file = %d, want 0", tbl.Len())
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "table.yaml")
	tbl := New(path)
	tbl.Merge([]Observation{
		{SSID: "lab", BSSID: "aa:bb:cc:00:00:01", Channel: 6, RSSI: -60},
		{SSID: "guest", BSSID: "aa:bb:cc:00:00:02", Channel: 11, RSSI: -70},
	})

	if err := tbl.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("table file mode = %o, want 600", perm)
	}

	loaded := New(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", loaded.Len())
	}
	e := loaded.Snapshot()[0]
	if e.SSID != "lab" || e.Channel != 6 || e.RSSI != -60 || e.Seen != 1 {
		t.Errorf("loaded entry = %+v", e)
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	os.WriteFile(path, []byte("entries: [unterminated"), 0600)

	if err := New(path).Load(); err == nil {
		t.Error("Load() of corrupt file should fail")
	}
}

func TestLoadUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	os.WriteFile(path, []byte("version: 7\nentries: []\n"), 0600)

	err := New(path).Load()
	if err == nil || !strings.Contains(err.Error(), "unsupported table version") {
		t.Errorf("Load() error = %v, want version error", err)
	}
}
