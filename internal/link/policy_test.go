package link

import (
	"testing"
	"time"
)

func TestReconnectPolicy_FirstRetryImmediate(t *testing.T) {
	p := NewReconnectPolicy(PolicyConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     25 * time.Millisecond,
		Multiplier:      2,
	})

	want := []time.Duration{0, 10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
	for i, w := range want {
		d, ok := p.Next()
		if !ok {
			t.Fatalf("Next() #%d gave up", i)
		}
		if d != w {
			t.Errorf("Next() #%d = %v, want %v", i, d, w)
		}
	}
}

func TestReconnectPolicy_ResetEndsStreak(t *testing.T) {
	p := NewReconnectPolicy(PolicyConfig{InitialInterval: 10 * time.Millisecond})

	p.Next()
	if d, _ := p.Next(); d == 0 {
		t.Fatal("second Next() in a streak should be delayed")
	}

	p.Reset()
	if d, ok := p.Next(); !ok || d != 0 {
		t.Errorf("Next() after Reset = (%v, %v), want (0, true)", d, ok)
	}
	if d, _ := p.Next(); d != 10*time.Millisecond {
		t.Errorf("backoff should restart from the initial interval, got %v", d)
	}
}

func TestReconnectPolicy_MaxAttempts(t *testing.T) {
	p := NewReconnectPolicy(PolicyConfig{
		InitialInterval: time.Millisecond,
		MaxAttempts:     2,
	})

	for i := 0; i < 3; i++ {
		if _, ok := p.Next(); !ok {
			t.Fatalf("Next() #%d gave up early", i)
		}
	}
	if _, ok := p.Next(); ok {
		t.Error("Next() should give up after the immediate retry plus 2 delayed ones")
	}
}

func TestImmediatePolicy(t *testing.T) {
	p := ImmediatePolicy()
	for i := 0; i < 100; i++ {
		d, ok := p.Next()
		if !ok || d != 0 {
			t.Fatalf("Next() #%d = (%v, %v), want (0, true)", i, d, ok)
		}
	}
}

func TestDefaultPolicyConfig(t *testing.T) {
	cfg := DefaultPolicyConfig()
	if cfg.MaxAttempts != 0 || cfg.MaxElapsedTime != 0 {
		t.Error("default policy should retry forever")
	}
	if cfg.InitialInterval <= 0 || cfg.MaxInterval < cfg.InitialInterval {
		t.Errorf("bad default intervals: %+v", cfg)
	}
}
