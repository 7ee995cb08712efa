package fenetre

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nffu/fenetre/internal/lockbox"
	"github.com/nffu/fenetre/internal/poller"
	"github.com/nffu/fenetre/internal/store"
)

// CourseSource fetches the current course discovery job.
type CourseSource interface {
	Courses(ctx context.Context) (lockbox.CourseJob, error)
}

// CourseWatcher polls a [CourseSource] until course discovery is ready and
// publishes every observed state to a store.
//
// Each activation is keyed by a revision number. Activating with a new
// revision abandons the previous one; its pending wait is dropped and a late
// response is never published.
type CourseWatcher struct {
	source    CourseSource
	poller    *poller.Poller[uint64]
	store     store.Store
	logger    *slog.Logger
	callbacks []func(Report)
}

// NewCourseWatcher creates an idle watcher. Nil logger falls back to slog.Default().
func NewCourseWatcher(source CourseSource, st store.Store, policy BackoffPolicy, logger *slog.Logger) *CourseWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &CourseWatcher{
		source: source,
		poller: poller.New[uint64](policy.internal(), logger),
		store:  st,
		logger: logger,
	}
	w.poller.OnFinish(w.finished)
	return w
}

// OnReport registers cb to receive every ready report. Register callbacks
// before the first Activate.
func (w *CourseWatcher) OnReport(cb func(Report)) {
	if cb != nil {
		w.callbacks = append(w.callbacks, cb)
	}
}

// Activate starts discovery for revision. It is a no-op, returning false,
// when revision is already being watched.
func (w *CourseWatcher) Activate(ctx context.Context, revision uint64) bool {
	started := w.poller.Start(ctx, revision, w.probe(revision))
	if started {
		w.logger.Info("course discovery started", "revision", revision)
	}
	return started
}

// Disable stops discovery and records that there is nothing to discover.
func (w *CourseWatcher) Disable() {
	w.poller.Stop()
	w.store.Set(store.Snapshot{Phase: store.PhaseDisabled})
}

// Fail stops discovery and records err as the reason.
func (w *CourseWatcher) Fail(err error) {
	w.poller.Stop()
	msg := err.Error()
	w.store.Set(store.Snapshot{Phase: store.PhaseError, Error: &msg})
}

// Stop cancels discovery and waits for it to wind down. The store keeps the
// last published snapshot.
func (w *CourseWatcher) Stop() {
	w.poller.Stop()
}

// Wait blocks until the current activation ends and returns its error.
func (w *CourseWatcher) Wait(ctx context.Context) error {
	return w.poller.Wait(ctx)
}

// Status returns the state of the current activation.
func (w *CourseWatcher) Status() poller.Status {
	return w.poller.Status()
}

func (w *CourseWatcher) probe(revision uint64) poller.Probe {
	attempts := 0
	return func(ctx context.Context) (poller.Outcome, error) {
		if attempts == 0 {
			w.poller.Commit(ctx, func() {
				w.store.Set(store.Snapshot{Phase: store.PhaseLoading})
			})
		}

		job, err := w.source.Courses(ctx)
		attempts++
		if err != nil {
			return poller.Outcome{}, err
		}

		if job.Pending() {
			w.poller.Commit(ctx, func() {
				w.store.Set(store.Snapshot{Phase: store.PhasePending, Attempts: attempts})
			})
			return poller.Outcome{Continue: true}, nil
		}

		report := Resolve(courseRecords(job.Courses))
		published := w.poller.Commit(ctx, func() {
			w.store.Set(readySnapshot(report, attempts))
		})
		if published {
			w.logger.Info("courses ready",
				"revision", revision,
				"aggregate", report.Status.String(),
				"courses", len(report.Entries),
				"attempts", attempts,
			)
			for _, cb := range w.callbacks {
				invokeCallbackSafe(cb, report, w.logger)
			}
		}
		return poller.Outcome{}, nil
	}
}

// finished publishes terminal failures. It runs under the poller's lock.
func (w *CourseWatcher) finished(revision uint64, st poller.Status) {
	if st.State != poller.StateFailed {
		return
	}
	msg := st.Err.Error()
	if errors.Is(st.Err, poller.ErrExhausted) {
		msg = "course discovery is taking too long: " + msg
	}
	w.store.Set(store.Snapshot{Phase: store.PhaseError, Attempts: st.Attempts, Error: &msg})
}

// courseRecords converts backend courses to classifier input.
func courseRecords(courses []lockbox.Course) []CourseRecord {
	out := make([]CourseRecord, len(courses))
	for i, c := range courses {
		out[i] = CourseRecord{
			CourseCode:          c.CourseCode,
			ConfigurationLocked: c.ConfigurationLocked,
			HasAttendanceForm:   c.HasAttendanceForm,
			FormConfigPresent:   c.FormConfigPresent(),
			KnownSlots:          c.KnownSlots,
		}
	}
	return out
}

func readySnapshot(r Report, attempts int) store.Snapshot {
	courses := make([]store.Course, len(r.Entries))
	for i, e := range r.Entries {
		courses[i] = store.Course{
			CourseCode:          e.Course.CourseCode,
			State:               e.State.String(),
			Marker:              e.State.Marker(),
			Action:              e.State.ActionLabel(),
			ConfigurationLocked: e.Course.ConfigurationLocked,
			HasAttendanceForm:   e.Course.HasAttendanceForm,
			KnownSlots:          e.Course.KnownSlots,
		}
	}
	return store.Snapshot{
		Phase:     store.PhaseReady,
		Aggregate: r.Status.String(),
		Message:   r.Status.Message(),
		Courses:   courses,
		Attempts:  attempts,
	}
}

// invokeCallbackSafe calls a report callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Report), report Report, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("report callback panicked",
				"panic", r,
				"aggregate", report.Status.String(),
			)
		}
	}()
	cb(report)
}
