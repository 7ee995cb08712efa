package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of one probe invocation.
type Outcome struct {
	// Continue asks the poller to schedule another invocation.
	Continue bool
}

// Probe is a caller-supplied check that the poller invokes repeatedly.
//
// The context is cancelled when the activation that issued the call is
// cancelled; probes should pass it to any blocking work. A returned error
// stops polling and is exposed through [Poller.Err].
type Probe func(ctx context.Context) (Outcome, error)

// State is the lifecycle state of a poller activation.
type State int

const (
	// StateIdle means the poller was never started.
	StateIdle State = iota
	// StatePolling means a probe is running or scheduled.
	StatePolling
	// StateStopped means the probe asked to stop.
	StateStopped
	// StateFailed means the probe returned an error or a policy limit was hit.
	StateFailed
	// StateCancelled means the activation was torn down before it finished.
	StateCancelled
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further probe invocations can happen in this state.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed || s == StateCancelled
}

// Status is a consistent view of the current activation.
type Status struct {
	// ID identifies the activation; empty when idle.
	ID string

	State State

	// Err is set when State is StateFailed.
	Err error

	// Attempts is the number of probe invocations that completed.
	Attempts int

	// NextDelay is the wait before the next invocation, zero when none is scheduled.
	NextDelay time.Duration
}

type activationKey struct{}

// activation is one run of the state machine. Fields below the separator
// are guarded by Poller.mu.
type activation[K comparable] struct {
	id     string
	key    K
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state     State
	err       error
	attempts  int
	nextDelay time.Duration
}

// Poller invokes a [Probe] with growing delays until it signals completion.
//
// A Poller runs at most one activation at a time, and an activation runs at
// most one probe at a time: invocation N+1 is scheduled only after the outcome
// of invocation N has been handled. Starting with a new key cancels the
// previous activation; its pending wait is abandoned and its in-flight result
// is discarded.
//
// All methods are safe for concurrent use.
type Poller[K comparable] struct {
	policy Policy
	logger *slog.Logger

	// replaceable in tests
	after func(time.Duration) <-chan time.Time
	now   func() time.Time

	mu       sync.Mutex
	cur      *activation[K]
	onFinish func(key K, st Status)
}

// New creates an idle [Poller]. The policy is not validated here; callers
// that accept user input should call [Policy.Validate] first. A nil logger
// falls back to slog.Default().
func New[K comparable](policy Policy, logger *slog.Logger) *Poller[K] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller[K]{
		policy: policy,
		logger: logger,
		after:  time.After,
		now:    time.Now,
	}
}

// Start activates polling for key and invokes probe immediately.
//
// If the current activation already uses key and was not cancelled, Start is
// a no-op and returns false. Otherwise the current activation (if any) is
// cancelled, the backoff state is reset, and a new activation begins; Start
// returns true. Start never blocks on the probe.
//
// If ctx is nil, context.Background() is used as the parent context.
func (p *Poller[K]) Start(ctx context.Context, key K, probe Probe) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	prev := p.cur
	if prev != nil && prev.key == key && prev.state != StateCancelled {
		p.mu.Unlock()
		return false
	}
	if prev != nil {
		p.cancelLocked(prev)
	}

	actCtx, cancel := context.WithCancel(ctx)
	a := &activation[K]{
		id:     uuid.NewString(),
		key:    key,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StatePolling,
	}
	a.ctx = context.WithValue(actCtx, activationKey{}, a)
	p.cur = a
	p.mu.Unlock()

	p.logger.Debug("polling started", "activation", a.id, "key", fmt.Sprint(key))

	go p.run(a, prev, probe)
	return true
}

// Stop cancels the current activation and waits for its goroutine to exit.
//
// Any scheduled invocation is dropped and the result of an in-flight probe is
// ignored. Stop is idempotent and safe to call on an idle poller.
func (p *Poller[K]) Stop() {
	p.mu.Lock()
	a := p.cur
	if a != nil {
		p.cancelLocked(a)
	}
	p.mu.Unlock()

	if a != nil {
		<-a.done
	}
}

// Commit runs fn if ctx belongs to the current, still polling activation and
// reports whether it ran.
//
// Probes publish their side effects through Commit so that a probe that was
// overtaken by a newer activation (or by Stop) cannot overwrite newer state.
// fn runs under the poller's lock and must not call back into the Poller.
func (p *Poller[K]) Commit(ctx context.Context, fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := ctx.Value(activationKey{}).(*activation[K])
	if !ok || a != p.cur || a.state != StatePolling || a.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// OnFinish registers fn to be called when an activation reaches a terminal
// state on its own: the probe asked to stop, failed, or its parent context
// ended. Activations cancelled by Start or Stop do not trigger it.
//
// fn runs under the poller's lock, like a [Poller.Commit] function, and must
// not call back into the Poller. Register it before the first Start.
func (p *Poller[K]) OnFinish(fn func(key K, st Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinish = fn
}

// Status returns a snapshot of the current activation.
func (p *Poller[K]) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil {
		return Status{State: StateIdle}
	}
	return Status{
		ID:        p.cur.id,
		State:     p.cur.state,
		Err:       p.cur.err,
		Attempts:  p.cur.attempts,
		NextDelay: p.cur.nextDelay,
	}
}

// State returns the state of the current activation.
func (p *Poller[K]) State() State {
	return p.Status().State
}

// Err returns the error that ended the current activation, if any.
func (p *Poller[K]) Err() error {
	return p.Status().Err
}

// Attempts returns the number of completed probe invocations of the current activation.
func (p *Poller[K]) Attempts() int {
	return p.Status().Attempts
}

// Done returns a channel that is closed when the current activation has
// finished. It returns nil (blocks forever) when the poller is idle.
func (p *Poller[K]) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil {
		return nil
	}
	return p.cur.done
}

// Wait blocks until the current activation finishes or ctx is done, and
// returns the activation's error or ctx.Err().
func (p *Poller[K]) Wait(ctx context.Context) error {
	done := p.Done()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cancelLocked marks a as cancelled and cancels its context. Caller holds p.mu.
func (p *Poller[K]) cancelLocked(a *activation[K]) {
	if a.state == StatePolling {
		a.state = StateCancelled
		a.nextDelay = 0
	}
	a.cancel()
}

// run is the activation loop. It owns the backoff state; every exit path
// goes through finish and closes a.done.
func (p *Poller[K]) run(a *activation[K], prev *activation[K], probe Probe) {
	defer close(a.done)
	defer a.cancel()

	// the previous activation may still have a probe in flight
	if prev != nil {
		select {
		case <-prev.done:
		case <-a.ctx.Done():
			p.finish(a, StateCancelled, nil)
			return
		}
	}

	bo := p.policy.start()
	started := p.now()

	for {
		outcome, err := p.invoke(a, probe)

		p.mu.Lock()
		a.attempts++
		p.mu.Unlock()

		if a.ctx.Err() != nil {
			p.finish(a, StateCancelled, nil)
			return
		}
		if err != nil {
			p.logger.Warn("probe failed, polling stopped",
				"activation", a.id,
				"attempt", bo.attempt+1,
				"error", err,
			)
			p.finish(a, StateFailed, err)
			return
		}
		if !outcome.Continue {
			p.logger.Debug("polling complete", "activation", a.id, "attempts", bo.attempt+1)
			p.finish(a, StateStopped, nil)
			return
		}
		if p.policy.exhausted(bo.attempt+1, p.now().Sub(started)) {
			err := fmt.Errorf("%w after %d attempts", ErrExhausted, bo.attempt+1)
			p.logger.Warn("giving up on polling", "activation", a.id, "error", err)
			p.finish(a, StateFailed, err)
			return
		}

		p.mu.Lock()
		a.nextDelay = bo.next
		p.mu.Unlock()

		p.logger.Debug("probe pending, backing off",
			"activation", a.id,
			"attempt", bo.attempt+1,
			"delay", bo.next.String(),
		)

		select {
		case <-a.ctx.Done():
			p.finish(a, StateCancelled, nil)
			return
		case <-p.after(bo.next):
		}

		bo = p.policy.advance(bo)
	}
}

// finish records the terminal state unless the activation was already
// cancelled from outside.
func (p *Poller[K]) finish(a *activation[K], state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if a.state != StatePolling {
		a.nextDelay = 0
		return
	}
	a.state = state
	a.err = err
	a.nextDelay = 0
	if p.onFinish != nil {
		p.onFinish(a.key, Status{ID: a.id, State: a.state, Err: a.err, Attempts: a.attempts})
	}
}

// invoke calls the probe with panic recovery.
// A panic is logged with its stack under a correlation ID and returned as an error.
func (p *Poller[K]) invoke(a *activation[K], probe Probe) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("probe panic",
				"activation", a.id,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			outcome = Outcome{}
			err = fmt.Errorf("probe panic (correlation_id: %s)", correlationID)
		}
	}()
	return probe(a.ctx)
}
