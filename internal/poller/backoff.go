package poller

import (
	"errors"
	"fmt"
	"time"
)

// default backoff parameters, tuned for a discovery job that usually
// finishes within a minute
const (
	defaultInitialDelay = 1 * time.Second
	defaultFactor       = 2.0
	defaultMaxDelay     = 30 * time.Second
)

// ErrExhausted is reported by a [Poller] whose [Policy] limits were reached
// before the probe signalled completion.
var ErrExhausted = errors.New("polling limit reached")

// Policy describes how the delay between probe invocations grows.
//
// The delay starts at Initial and is multiplied by Factor after every
// invocation that asks to keep polling, never exceeding Max. MaxAttempts and
// MaxElapsed bound the total work of one activation; zero means unlimited.
type Policy struct {
	// Initial is the delay before the second invocation.
	Initial time.Duration

	// Factor is the multiplicative growth applied after each wait. Must be >= 1.
	Factor float64

	// Max caps the delay.
	Max time.Duration

	// MaxAttempts is the maximum number of probe invocations per activation.
	MaxAttempts int

	// MaxElapsed is the maximum wall time of one activation, measured from
	// the first invocation to the moment the next one would be scheduled.
	MaxElapsed time.Duration
}

// DefaultPolicy returns a capped exponential policy (1s, 2s, 4s ... 30s)
// without attempt or time limits.
func DefaultPolicy() Policy {
	return Policy{
		Initial: defaultInitialDelay,
		Factor:  defaultFactor,
		Max:     defaultMaxDelay,
	}
}

// Validate reports whether the policy can drive a poller.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial delay must be positive, got %s", p.Initial)
	}
	if p.Factor < 1 {
		return fmt.Errorf("factor must be at least 1, got %g", p.Factor)
	}
	if p.Max < p.Initial {
		return fmt.Errorf("max delay %s must not be below initial delay %s", p.Max, p.Initial)
	}
	// a constant delay is only allowed when it already sits at the cap
	if p.Factor == 1 && p.Max > p.Initial {
		return fmt.Errorf("factor must be greater than 1 when max delay %s exceeds initial delay %s", p.Max, p.Initial)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max attempts cannot be negative, got %d", p.MaxAttempts)
	}
	if p.MaxElapsed < 0 {
		return fmt.Errorf("max elapsed cannot be negative, got %s", p.MaxElapsed)
	}
	return nil
}

// backoffState is owned by exactly one activation and never leaves its goroutine.
type backoffState struct {
	attempt int
	next    time.Duration
}

func (p Policy) start() backoffState {
	return backoffState{attempt: 0, next: p.Initial}
}

// advance returns the state after one wait of s.next has been consumed.
func (p Policy) advance(s backoffState) backoffState {
	grown := time.Duration(float64(s.next) * p.Factor)
	// float overflow turns into a negative duration
	if grown > p.Max || grown <= 0 {
		grown = p.Max
	}
	return backoffState{attempt: s.attempt + 1, next: grown}
}

// exhausted reports whether scheduling another invocation would break a limit.
// invocations is the number of probes already run in this activation.
func (p Policy) exhausted(invocations int, elapsed time.Duration) bool {
	if p.MaxAttempts > 0 && invocations >= p.MaxAttempts {
		return true
	}
	if p.MaxElapsed > 0 && elapsed >= p.MaxElapsed {
		return true
	}
	return false
}
