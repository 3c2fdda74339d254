package policy

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Fault handling modes.
const (
	ModeWait      = "wait"      // park the process in WAITING and retry later
	ModeTerminate = "terminate" // terminate the process as failed
)

// Policy controls fault handling of one process.  A nil *Policy means
// "terminate on fault".
type Policy struct {
	Mode string
	// RetryAfter wakes a waiting process even when no memory was released
	RetryAfter time.Duration
	// MaxRetries bounds the number of faults before termination; 0 means unbounded
	MaxRetries int
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Mode       string        `json:"mode,omitempty" yaml:"mode,omitempty"`
	RetryAfter time.Duration `json:"retryAfter,omitempty" yaml:"retryAfter,omitempty"`
	MaxRetries int           `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
}

// DefaultConfig waits up to three times, retrying at least every 100ms
func DefaultConfig() Config {
	return Config{Mode: ModeWait, RetryAfter: 100 * time.Millisecond, MaxRetries: 3}
}

// Validate returns an error for an unknown mode or negative bounds
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "", ModeWait, ModeTerminate:
	default:
		return fmt.Errorf("policy.mode %q is not one of %s, %s", c.Mode, ModeWait, ModeTerminate)
	}
	if c.RetryAfter < 0 || c.MaxRetries < 0 {
		return fmt.Errorf("policy retry settings must not be negative")
	}
	return nil
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{Mode: p.Mode, RetryAfter: p.RetryAfter, MaxRetries: p.MaxRetries}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{Mode: strings.ToLower(c.Mode), RetryAfter: c.RetryAfter, MaxRetries: c.MaxRetries}
}

// ShouldWait reports whether a process that faulted faults times waits.
func (p *Policy) ShouldWait(faults int) bool {
	if p == nil || p.Mode != ModeWait {
		return false
	}
	return p.MaxRetries == 0 || faults <= p.MaxRetries
}

// Due reports whether a process waiting since since is due for a retry
func (p *Policy) Due(since time.Time, now time.Time) bool {
	if p == nil || p.RetryAfter <= 0 {
		return false
	}
	return now.Sub(since) >= p.RetryAfter
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy carried by ctx, if any.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
