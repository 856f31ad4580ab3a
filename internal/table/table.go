package table

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const fileVersion = 1

// Observation is a single access point sighting reported by a scan.
type Observation struct {
	SSID    string
	BSSID   string
	Channel int
	RSSI    int // dBm
}

// Entry is the accumulated record for one BSSID.
type Entry struct {
	SSID      string    `yaml:"ssid" json:"ssid"`
	BSSID     string    `yaml:"bssid" json:"bssid"`
	Channel   int       `yaml:"channel" json:"channel"`
	RSSI      int       `yaml:"rssi" json:"rssi"` // Most recent signal strength
	FirstSeen time.Time `yaml:"first_seen" json:"first_seen"`
	LastSeen  time.Time `yaml:"last_seen" json:"last_seen"`
	Seen      int       `yaml:"seen" json:"seen"` // Number of scans that reported it
}

type document struct {
	Version int     `yaml:"version"`
	Entries []Entry `yaml:"entries"`
}

// Table is the persisted set of access points observed in scan mode.
// It is safe for concurrent use.
type Table struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]*Entry

	// fileMu serialises Save so temp files never collide.
	fileMu sync.Mutex
}

// New returns an empty table persisted at path.
func New(path string) *Table {
	return &Table{
		path:    path,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
}

// Path returns the file the table is persisted to.
func (t *Table) Path() string {
	return t.path
}

// Merge folds a scan result into the table and returns the number of
// BSSIDs seen for the first time.
func (t *Table) Merge(obs []Observation) int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, o := range obs {
		key := normalizeBSSID(o.BSSID)
		if key == "" {
			continue
		}
		e, ok := t.entries[key]
		if !ok {
			e = &Entry{BSSID: key, FirstSeen: now}
			t.entries[key] = e
			added++
		}
		if o.SSID != "" {
			e.SSID = o.SSID
		}
		e.Channel = o.Channel
		e.RSSI = o.RSSI
		e.LastSeen = now
		e.Seen++
	}
	return added
}

// Snapshot returns a copy of the entries, strongest signal first.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].BSSID < out[j].BSSID
	})
	return out
}

// Len returns the number of distinct BSSIDs in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear removes every entry. The file is untouched until the next Save.
func (t *Table) Clear() {
	t.mu.Lock()
	t.entries = make(map[string]*Entry)
	t.mu.Unlock()
}

// Load replaces the in-memory contents with the file's. A missing file
// loads as an empty table.
func (t *Table) Load() error {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		t.Clear()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read table: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse table: %w", err)
	}
	if doc.Version != 0 && doc.Version != fileVersion {
		return fmt.Errorf("unsupported table version: %d (expected %d)", doc.Version, fileVersion)
	}

	entries := make(map[string]*Entry, len(doc.Entries))
	for i := range doc.Entries {
		e := doc.Entries[i]
		e.BSSID = normalizeBSSID(e.BSSID)
		if e.BSSID == "" {
			continue
		}
		entries[e.BSSID] = &e
	}

	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()
	return nil
}

// Save writes the table atomically: a temporary file is written next to
// the target and renamed over it.
func (t *Table) Save() error {
	t.fileMu.Lock()
	defer t.fileMu.Unlock()

	doc := document{Version: fileVersion, Entries: t.Snapshot()}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal table: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}

	tmpPath := t.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary table file: %w", err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save table: %w", err)
	}
	return nil
}

func normalizeBSSID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
