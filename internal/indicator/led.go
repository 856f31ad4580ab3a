package indicator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// None is an LED that is never seen.
type None struct{}

// Set implements LED.
func (None) Set(bool) error { return nil }

var (
	ledOnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)
	ledOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
	ledLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingLeft(1)
)

// Terminal draws the LED as a dot on a line of its own, rewriting the line
// in place on every change.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	label string
	lit   bool
	drawn bool
}

// NewTerminal creates a terminal LED writing to out.
func NewTerminal(out io.Writer, label string) *Terminal {
	if out == nil {
		out = os.Stderr
	}
	return &Terminal{out: out, label: label}
}

// Set implements LED.
func (t *Terminal) Set(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Avoid printing a dark LED that was never lit.
	if !on && !t.drawn {
		return nil
	}
	if t.drawn && on == t.lit {
		return nil
	}

	dot := ledOffStyle.Render("○")
	if on {
		dot = ledOnStyle.Render("●")
	}
	_, err := fmt.Fprintf(t.out, "\r%s%s", dot, ledLabelStyle.Render(t.label))
	if err == nil && !on {
		_, err = fmt.Fprint(t.out, "\r\033[K")
	}
	t.lit = on
	t.drawn = on
	return err
}

// Sysfs drives a Linux LED class device, e.g. /sys/class/leds/led0.
type Sysfs struct {
	dir string
	max int
}

// NewSysfs opens the LED at dir and reads its max_brightness.
func NewSysfs(dir string) (*Sysfs, error) {
	if _, err := os.Stat(filepath.Join(dir, "brightness")); err != nil {
		return nil, fmt.Errorf("LED not available at %s: %w", dir, err)
	}
	max := 1
	if b, err := os.ReadFile(filepath.Join(dir, "max_brightness")); err == nil {
		if n, err := strconv.Atoi(string(trimNewline(b))); err == nil && n > 0 {
			max = n
		}
	}
	return &Sysfs{dir: dir, max: max}, nil
}

// Set implements LED.
func (s *Sysfs) Set(on bool) error {
	v := 0
	if on {
		v = s.max
	}
	path := filepath.Join(s.dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(v)), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}
