package link

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff"
)

// PolicyConfig configures the reconnect backoff.
type PolicyConfig struct {
	// InitialInterval is the delay before the first delayed retry.
	InitialInterval time.Duration
	// MaxInterval caps a single delay.
	MaxInterval time.Duration
	// Multiplier grows the delay after each retry.
	Multiplier float64
	// MaxElapsedTime stops retrying once a disconnect streak lasts this
	// long. Zero retries forever.
	MaxElapsedTime time.Duration
	// MaxAttempts bounds the delayed retries that follow the immediate one.
	// Zero means unlimited.
	MaxAttempts uint64
	// Jitter randomises each delay by +/-50%.
	Jitter bool
}

// DefaultPolicyConfig returns the daemon defaults: retry forever, backing
// off from one second to one minute.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2,
		Jitter:          true,
	}
}

// ReconnectPolicy decides when to re-issue connect after a disconnect.
//
// The first disconnect after a successful address acquisition reconnects
// immediately. Further disconnects in the same streak wait for the next
// backoff delay; Reset ends the streak.
type ReconnectPolicy struct {
	mu       sync.Mutex
	b        backoff.BackOff
	inStreak bool
}

// NewReconnectPolicy builds an exponential policy from cfg.
func NewReconnectPolicy(cfg PolicyConfig) *ReconnectPolicy {
	exp := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		exp.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		exp.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		exp.Multiplier = cfg.Multiplier
	}
	exp.MaxElapsedTime = cfg.MaxElapsedTime
	if !cfg.Jitter {
		exp.RandomizationFactor = 0
	}
	exp.Reset()

	var b backoff.BackOff = exp
	if cfg.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(exp, cfg.MaxAttempts)
	}
	return NewPolicyFromBackOff(b)
}

// NewPolicyFromBackOff wraps an arbitrary backoff.BackOff.
func NewPolicyFromBackOff(b backoff.BackOff) *ReconnectPolicy {
	return &ReconnectPolicy{b: b}
}

// ImmediatePolicy reconnects on every disconnect with no delay and no limit.
func ImmediatePolicy() *ReconnectPolicy {
	return NewPolicyFromBackOff(&backoff.ZeroBackOff{})
}

// Next returns the delay before the next connect, or false when the policy
// has given up.
func (p *ReconnectPolicy) Next() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.inStreak {
		p.inStreak = true
		p.b.Reset()
		return 0, true
	}

	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

// Reset ends the current disconnect streak.
func (p *ReconnectPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inStreak = false
}
