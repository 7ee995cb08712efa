package store

import "time"

// discovery phases
const (
	// PhaseDisabled means the user has no stored credentials, so there is nothing to discover.
	PhaseDisabled = "disabled"
	// PhaseLoading means the first fetch of an activation has not returned yet.
	PhaseLoading = "loading"
	// PhasePending means the backend is still discovering courses.
	PhasePending = "pending"
	// PhaseReady means Courses holds the result of the last successful fetch.
	PhaseReady = "ready"
	// PhaseError means polling stopped on an error.
	PhaseError = "error"
)

// Course is one classified course, optimized for JSON serialization.
type Course struct {
	CourseCode          string   `json:"course_code"`
	State               string   `json:"state"`
	Marker              string   `json:"marker"`
	Action              string   `json:"action"`
	ConfigurationLocked bool     `json:"configuration_locked"`
	HasAttendanceForm   bool     `json:"has_attendance_form"`
	KnownSlots          []string `json:"known_slots"`
}

// Snapshot is the complete course discovery state at one point in time.
type Snapshot struct {
	// Phase is one of the Phase constants.
	Phase string `json:"phase"`

	// Aggregate is the overall classification; empty unless Phase is ready.
	Aggregate string `json:"aggregate,omitempty"`

	// Message is the human-readable summary of Aggregate.
	Message string `json:"message,omitempty"`

	// Courses is in backend order; empty unless Phase is ready.
	Courses []Course `json:"courses"`

	// Attempts is the number of probes the current activation has completed.
	Attempts int `json:"attempts"`

	// Error contains the error message if polling failed.
	Error *string `json:"error"`

	// UpdatedAt is when the snapshot was stored.
	UpdatedAt time.Time `json:"updated_at"`

	// Revision increases by one with every stored snapshot.
	Revision uint64 `json:"revision"`
}

// clone returns a deep copy so that callers cannot mutate stored state.
func (s Snapshot) clone() Snapshot {
	cp := s
	if s.Courses != nil {
		cp.Courses = make([]Course, len(s.Courses))
		for i, c := range s.Courses {
			c.KnownSlots = append([]string(nil), c.KnownSlots...)
			cp.Courses[i] = c
		}
	}
	if s.Error != nil {
		msg := *s.Error
		cp.Error = &msg
	}
	return cp
}

// Store defines the interface for storing and subscribing to course snapshots.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Set replaces the current snapshot, stamps UpdatedAt and Revision, and
	// notifies all subscribers. It returns the stored snapshot.
	Set(s Snapshot) Snapshot

	// Get returns a copy of the current snapshot.
	Get() Snapshot

	// Subscribe returns a channel that receives every stored snapshot.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
