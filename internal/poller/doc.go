// Package poller provides the backoff polling primitive used to wait for
// server-side background jobs.
//
// A [Poller] repeatedly invokes a caller-supplied [Probe] until the probe
// reports completion, fails, or the activation is cancelled. Delays between
// invocations grow according to a [Policy] (capped exponential by default).
//
// The main components are:
//
//   - [Poller]: one activation at a time, one probe in flight at a time
//   - [Probe]: the check being polled, returning an [Outcome]
//   - [Policy]: initial delay, growth factor, ceiling and optional limits
//   - [State]: Idle, Polling, Stopped, Failed or Cancelled
//
// Probes publish their results through [Poller.Commit] so that results of
// an activation that has been superseded are discarded.
package poller
