package fenetre

import (
	"time"

	"github.com/nffu/fenetre/internal/poller"
)

// BackoffPolicy controls how course discovery is polled while the backend
// reports it as pending.
//
// The first fetch happens immediately. After each pending response the wait
// before the next fetch is multiplied by Factor, up to Max. MaxAttempts and
// MaxElapsed bound the whole activation; zero means no bound.
type BackoffPolicy struct {
	Initial     time.Duration
	Factor      float64
	Max         time.Duration
	MaxAttempts int
	MaxElapsed  time.Duration
}

// DefaultBackoff returns the default policy: 1s initial delay, doubling,
// capped at 30s, with no overall limit.
func DefaultBackoff() BackoffPolicy {
	p := poller.DefaultPolicy()
	return BackoffPolicy{
		Initial:     p.Initial,
		Factor:      p.Factor,
		Max:         p.Max,
		MaxAttempts: p.MaxAttempts,
		MaxElapsed:  p.MaxElapsed,
	}
}

// Validate reports whether the policy can be used.
func (b BackoffPolicy) Validate() error {
	return b.internal().Validate()
}

func (b BackoffPolicy) internal() poller.Policy {
	return poller.Policy{
		Initial:     b.Initial,
		Factor:      b.Factor,
		Max:         b.Max,
		MaxAttempts: b.MaxAttempts,
		MaxElapsed:  b.MaxElapsed,
	}
}
