package mode

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/probewatch/internal/events"
	"github.com/muurk/probewatch/internal/indicator"
	"github.com/muurk/probewatch/internal/link"
	"github.com/muurk/probewatch/internal/web"
)

// recorder logs every collaborator call and checks that scanning and
// connected mode never overlap.
type recorder struct {
	t *testing.T

	mu       sync.Mutex
	calls    []string
	scanning bool
	linkUp   bool
	webUp    bool
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)

	switch call {
	case "scan.start":
		if r.linkUp || r.webUp {
			r.t.Errorf("scanner started while link=%v web=%v", r.linkUp, r.webUp)
		}
		r.scanning = true
	case "scan.stop":
		r.scanning = false
	case "link.start":
		if r.scanning {
			r.t.Error("link started while scanning")
		}
		r.linkUp = true
	case "link.stop":
		r.linkUp = false
	case "web.start":
		if r.scanning {
			r.t.Error("web started while scanning")
		}
		r.webUp = true
	case "web.stop":
		r.webUp = false
	}
}

func (r *recorder) take() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := strings.Join(r.calls, ",")
	r.calls = nil
	return s
}

type fakeLink struct {
	rec *recorder

	startErr  error
	stopErr   error
	waitErr   error
	waitBlock chan struct{}
	deinitErr error
}

func (l *fakeLink) Start(link.Credentials) error {
	l.rec.record("link.start")
	return l.startErr
}

func (l *fakeLink) WaitReady(ctx context.Context, timeout time.Duration) error {
	l.rec.record("link.wait")
	if l.waitBlock != nil {
		select {
		case <-l.waitBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.waitErr
}

func (l *fakeLink) Stop() error {
	l.rec.record("link.stop")
	return l.stopErr
}

func (l *fakeLink) AwaitDeinit(context.Context, time.Duration) error {
	l.rec.record("link.deinit")
	return l.deinitErr
}

type fakeScanner struct {
	rec      *recorder
	startErr error
}

func (s *fakeScanner) Start() error {
	s.rec.record("scan.start")
	return s.startErr
}

func (s *fakeScanner) Stop() error {
	s.rec.record("scan.stop")
	return nil
}

type fakeTable struct {
	rec *recorder
	err error
}

func (f *fakeTable) Load() error {
	f.rec.record("table.load")
	return f.err
}

type recordingWeb struct {
	rec *recorder
	srv *web.Server
}

func (w *recordingWeb) Start() (web.Handle, error) {
	w.rec.record("web.start")
	return w.srv.Start()
}

func (w *recordingWeb) Stop(h web.Handle) error {
	w.rec.record("web.stop")
	return w.srv.Stop(h)
}

type fakeIndicator struct {
	mu       sync.Mutex
	runs     []indicator.Pattern
	cancels  int
	active   bool
	overlaps int
}

func (f *fakeIndicator) Run(ctx context.Context, p indicator.Pattern) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		f.overlaps++
	}
	f.active = true
	f.runs = append(f.runs, p)
}

func (f *fakeIndicator) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	f.cancels++
}

type harness struct {
	rec     *recorder
	loop    *events.Loop
	link    *fakeLink
	scanner *fakeScanner
	table   *fakeTable
	web     *recordingWeb
	ind     *fakeIndicator
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rec := &recorder{t: t}
	h := &harness{
		rec:     rec,
		loop:    events.NewLoop(0),
		link:    &fakeLink{rec: rec},
		scanner: &fakeScanner{rec: rec},
		table:   &fakeTable{rec: rec},
		web:     &recordingWeb{rec: rec, srv: web.New(web.Config{Listen: "127.0.0.1:0"}, nil, nil)},
		ind:     &fakeIndicator{},
	}
	t.Cleanup(h.loop.Close)
	h.orch = New(Deps{
		Link:      h.link,
		Bus:       h.loop,
		Web:       h.web,
		Scanner:   h.scanner,
		Indicator: h.ind,
		Table:     h.table,
	}, Config{Credentials: link.Credentials{SSID: "lab"}})
	t.Cleanup(func() { _ = h.orch.Shutdown() })
	return h
}

func (h *harness) post(t *testing.T, class events.Class, data any) {
	t.Helper()
	if err := h.loop.Post(events.Event{Class: class, Data: data}); err != nil {
		t.Fatal(err)
	}
	if err := h.loop.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestOrchestrator_FirstToggleEntersScan(t *testing.T) {
	h := newHarness(t)

	if err := h.orch.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if h.orch.Mode() != Scan {
		t.Errorf("Mode() = %v, want scan", h.orch.Mode())
	}
	// Nothing to stop on the web side, the link is told to stop anyway.
	if got := h.rec.take(); got != "link.stop,link.deinit,scan.start" {
		t.Errorf("calls = %q", got)
	}
}

func TestOrchestrator_ScanToConnected(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.rec.take()

	if err := h.orch.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if h.orch.Mode() != Connected {
		t.Errorf("Mode() = %v, want connected", h.orch.Mode())
	}
	want := "scan.stop,table.load,link.start,link.wait,web.start"
	if got := h.rec.take(); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
	if !h.orch.WebRunning() {
		t.Error("web server not running in connected mode")
	}
}

func TestOrchestrator_ConnectedToScan(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.orch.Toggle(context.Background())
	h.rec.take()

	if err := h.orch.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	want := "web.stop,link.stop,link.deinit,scan.start"
	if got := h.rec.take(); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
	if h.orch.WebRunning() {
		t.Error("web server still running in scan mode")
	}

	// Bridges are gone: link events no longer touch the web server.
	h.post(t, events.AddressAcquired, events.Address{})
	if got := h.rec.take(); got != "" {
		t.Errorf("bridge still active after leaving connected mode: %q", got)
	}
}

func TestOrchestrator_StrictAlternation(t *testing.T) {
	h := newHarness(t)
	want := []Mode{Scan, Connected, Scan, Connected, Scan}
	for i, m := range want {
		if err := h.orch.Toggle(context.Background()); err != nil {
			t.Fatalf("Toggle() #%d error = %v", i, err)
		}
		if got := h.orch.Mode(); got != m {
			t.Fatalf("after toggle #%d mode = %v, want %v", i, got, m)
		}
	}
}

func TestOrchestrator_BridgesFollowLink(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.orch.Toggle(context.Background())
	h.rec.take()

	h.post(t, events.LinkDisconnected, events.Disconnect{Reason: 8})
	if got := h.rec.take(); got != "web.stop" {
		t.Errorf("on disconnect calls = %q, want web.stop", got)
	}
	if h.orch.WebRunning() {
		t.Error("web server running after disconnect")
	}

	h.post(t, events.LinkDisconnected, events.Disconnect{Reason: 8})
	if got := h.rec.take(); got != "" {
		t.Errorf("second disconnect calls = %q, want none", got)
	}

	h.post(t, events.AddressAcquired, events.Address{})
	if got := h.rec.take(); got != "web.start" {
		t.Errorf("on address calls = %q, want web.start", got)
	}
	h.post(t, events.AddressAcquired, events.Address{})
	if got := h.rec.take(); got != "" {
		t.Errorf("address while running calls = %q, want none", got)
	}
}

func TestOrchestrator_IndicatorRunsDuringTransition(t *testing.T) {
	h := newHarness(t)
	h.link.waitBlock = make(chan struct{})
	h.orch.Toggle(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.orch.Toggle(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for !h.orch.Transitioning() {
		if time.Now().After(deadline) {
			t.Fatal("transition never started")
		}
		time.Sleep(time.Millisecond)
	}
	h.ind.mu.Lock()
	active := h.ind.active
	h.ind.mu.Unlock()
	if !active {
		t.Error("indicator not running during transition")
	}

	close(h.link.waitBlock)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	h.ind.mu.Lock()
	defer h.ind.mu.Unlock()
	if h.ind.active {
		t.Error("indicator still running after transition")
	}
	if len(h.ind.runs) != 2 || h.ind.cancels != 2 || h.ind.overlaps != 0 {
		t.Errorf("indicator runs=%v cancels=%d overlaps=%d", h.ind.runs, h.ind.cancels, h.ind.overlaps)
	}
	for _, p := range h.ind.runs {
		if p != indicator.MonoBlink {
			t.Errorf("pattern = %v, want mono_blink", p)
		}
	}
}

func TestOrchestrator_ToggleNotReentrant(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.link.waitBlock = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.orch.Toggle(context.Background()) }()

	for !h.orch.Transitioning() {
		time.Sleep(time.Millisecond)
	}
	if err := h.orch.Toggle(context.Background()); !errors.Is(err, ErrToggleBusy) {
		t.Errorf("concurrent Toggle() error = %v, want ErrToggleBusy", err)
	}

	close(h.link.waitBlock)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if h.orch.Mode() != Connected {
		t.Errorf("Mode() = %v, want connected", h.orch.Mode())
	}
}

func TestOrchestrator_FailureKeepsMode(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.link.waitErr = link.ErrTimeout

	err := h.orch.Toggle(context.Background())
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("Toggle() error = %v, want *TransitionError", err)
	}
	if te.Step != "wait ready" || te.From != Scan || te.To != Connected {
		t.Errorf("TransitionError = %+v", te)
	}
	if !errors.Is(err, link.ErrTimeout) {
		t.Error("cause not unwrapped")
	}
	if h.orch.Mode() != Scan {
		t.Errorf("Mode() after failure = %v, want scan", h.orch.Mode())
	}
	if h.orch.WebRunning() {
		t.Error("web server started despite failure")
	}
}

func TestOrchestrator_StopFailureLeavesScannerOff(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.orch.Toggle(context.Background())
	h.rec.take()

	h.link.stopErr = &link.SubsystemError{Op: "stop", Err: errors.New("boom")}
	err := h.orch.Toggle(context.Background())
	if !link.IsSubsystemFatal(err) {
		t.Fatalf("Toggle() error = %v, want subsystem error", err)
	}
	if got := h.rec.take(); got != "web.stop,link.stop" {
		t.Errorf("calls = %q", got)
	}
	if h.orch.Mode() != Connected {
		t.Errorf("Mode() = %v, want connected", h.orch.Mode())
	}
}

func TestOrchestrator_TableLoadFailure(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.rec.take()
	h.table.err = errors.New("corrupt")

	if err := h.orch.Toggle(context.Background()); err == nil {
		t.Fatal("Toggle() succeeded with a broken table")
	}
	if got := h.rec.take(); got != "scan.stop,table.load" {
		t.Errorf("calls = %q, link must not start", got)
	}
}

func TestOrchestrator_Recover(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.link.waitErr = link.ErrTimeout
	h.orch.Toggle(context.Background())
	h.rec.take()

	if err := h.orch.Recover(context.Background()); err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if got := h.rec.take(); got != "link.stop,link.deinit,scan.stop,scan.start" {
		t.Errorf("calls = %q", got)
	}
	if h.orch.Mode() != Scan {
		t.Errorf("Mode() = %v, want scan", h.orch.Mode())
	}

	// Normal toggling resumes.
	h.link.waitErr = nil
	if err := h.orch.Toggle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.orch.Mode() != Connected {
		t.Errorf("Mode() = %v, want connected", h.orch.Mode())
	}
}

func TestOrchestrator_RecoverFromConnected(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.orch.Toggle(context.Background())
	h.rec.take()

	if err := h.orch.Recover(context.Background()); err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if got := h.rec.take(); got != "web.stop,link.stop,link.deinit,scan.stop,scan.start" {
		t.Errorf("calls = %q", got)
	}
}

func TestOrchestrator_RecoverFailure(t *testing.T) {
	h := newHarness(t)
	h.orch.Toggle(context.Background())
	h.link.stopErr = errors.New("driver wedged")

	if err := h.orch.Recover(context.Background()); err == nil {
		t.Fatal("Recover() should fail when the link cannot stop")
	}
}

func TestMode_String(t *testing.T) {
	if Scan.String() != "scan" || Connected.String() != "connected" {
		t.Error("unexpected mode names")
	}
	if Scan.Other() != Connected || Connected.Other() != Scan {
		t.Error("Other() does not alternate")
	}
}
