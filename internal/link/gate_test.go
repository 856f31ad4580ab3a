package link

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGate_CreateTwice(t *testing.T) {
	g := NewGate()
	if err := g.Create(); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	if err := g.Create(); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Create() error = %v, want ErrAlreadyActive", err)
	}

	g.Destroy()
	if err := g.Create(); err != nil {
		t.Errorf("Create() after Destroy error = %v", err)
	}
}

func TestGate_SignalThenWait(t *testing.T) {
	g := NewGate()
	g.Create()

	if !g.Signal() {
		t.Fatal("Signal() on active gate = false")
	}
	if err := g.WaitReady(context.Background(), time.Second); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}

	// The bit was consumed: a second wait needs a new signal.
	if err := g.WaitReady(context.Background(), 20*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("second WaitReady() error = %v, want ErrTimeout", err)
	}
}

func TestGate_SignalsCollapse(t *testing.T) {
	g := NewGate()
	g.Create()

	g.Signal()
	g.Signal()

	if err := g.WaitReady(context.Background(), time.Second); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if err := g.WaitReady(context.Background(), 20*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("WaitReady() after two signals and one wait = %v, want ErrTimeout", err)
	}
}

func TestGate_WaitThenSignal(t *testing.T) {
	g := NewGate()
	g.Create()

	done := make(chan error, 1)
	go func() {
		done <- g.WaitReady(context.Background(), 0)
	}()

	time.Sleep(10 * time.Millisecond)
	g.Signal()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitReady() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReady() did not return after Signal()")
	}
}

func TestGate_Reset(t *testing.T) {
	g := NewGate()
	g.Create()

	g.Signal()
	g.Reset()

	if err := g.WaitReady(context.Background(), 20*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("WaitReady() after Reset = %v, want ErrTimeout", err)
	}
}

func TestGate_DestroyWakesWaiter(t *testing.T) {
	g := NewGate()
	g.Create()

	done := make(chan error, 1)
	go func() {
		done <- g.WaitReady(context.Background(), 0)
	}()

	time.Sleep(10 * time.Millisecond)
	g.Destroy()

	select {
	case err := <-done:
		if !errors.Is(err, ErrGateClosed) {
			t.Errorf("WaitReady() error = %v, want ErrGateClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReady() did not return after Destroy()")
	}
}

func TestGate_LateSignalIgnored(t *testing.T) {
	g := NewGate()
	g.Create()
	g.Destroy()

	if g.Signal() {
		t.Error("Signal() on destroyed gate = true, want false")
	}
	if err := g.WaitReady(context.Background(), 0); !errors.Is(err, ErrGateClosed) {
		t.Errorf("WaitReady() on destroyed gate = %v, want ErrGateClosed", err)
	}

	// A fresh gate does not inherit the late signal.
	g.Create()
	if err := g.WaitReady(context.Background(), 20*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("WaitReady() on recreated gate = %v, want ErrTimeout", err)
	}
}

func TestGate_ContextCancel(t *testing.T) {
	g := NewGate()
	g.Create()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.WaitReady(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitReady() error = %v, want context.Canceled", err)
	}
}

func TestGate_FailWakesWaiter(t *testing.T) {
	g := NewGate()
	g.Create()

	cause := subsystem("reconnect", ErrReconnectExhausted)
	done := make(chan error, 1)
	go func() {
		done <- g.WaitReady(context.Background(), 0)
	}()

	time.Sleep(10 * time.Millisecond)
	if !g.Fail(cause) {
		t.Fatal("Fail() on active gate = false")
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrReconnectExhausted) {
			t.Errorf("WaitReady() error = %v, want ErrReconnectExhausted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReady() did not return after Fail()")
	}

	// The failure sticks until the gate is recreated.
	if err := g.WaitReady(context.Background(), 20*time.Millisecond); !errors.Is(err, ErrReconnectExhausted) {
		t.Errorf("second WaitReady() error = %v, want ErrReconnectExhausted", err)
	}
	g.Fail(errors.New("later"))
	if err := g.WaitReady(context.Background(), 20*time.Millisecond); !errors.Is(err, ErrReconnectExhausted) {
		t.Errorf("WaitReady() after second Fail() = %v, want the first failure", err)
	}

	g.Destroy()
	g.Create()
	if err := g.WaitReady(context.Background(), 20*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("WaitReady() on recreated gate = %v, want ErrTimeout", err)
	}
}

func TestGate_FailInactive(t *testing.T) {
	g := NewGate()
	if g.Fail(ErrReconnectExhausted) {
		t.Error("Fail() on inactive gate = true, want false")
	}
}
