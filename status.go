package fenetre

// CourseRecord is the server-reported state of one course.
type CourseRecord struct {
	// CourseCode identifies the course, e.g. "MCV4U1-01".
	CourseCode string

	// ConfigurationLocked means the configuration was verified and is final.
	ConfigurationLocked bool

	// HasAttendanceForm is false for courses that need no form at all.
	HasAttendanceForm bool

	// FormConfigPresent means some user already supplied a form configuration.
	FormConfigPresent bool

	// KnownSlots lists the timetable slots the course was seen in, in order.
	KnownSlots []string
}

// AggregateStatus summarizes a whole course set.
//
// AggregateStatus is a pure function of the course set (see [Classify]);
// it has no lifecycle of its own.
type AggregateStatus string

const (
	// AllVerified means every course configuration is locked.
	AllVerified AggregateStatus = "all_verified"

	// SomeUnverifiedButConfigured means at least one unlocked course already
	// has a usable configuration (or needs none).
	SomeUnverifiedButConfigured AggregateStatus = "some_unverified_but_configured"

	// SomeUnconfigured means unlocked courses exist and none of them is usable yet.
	SomeUnconfigured AggregateStatus = "some_unconfigured"
)

// String returns the string representation of the status.
func (s AggregateStatus) String() string {
	return string(s)
}

// Message returns the summary shown above the course list.
func (s AggregateStatus) Message() string {
	switch s {
	case AllVerified:
		return "Good news! We have configurations for all of your courses!"
	case SomeUnverifiedButConfigured:
		return "All of your courses have valid configurations, however some of them have not been verified yet. " +
			"You might want to check them (and possibly amend them) yourself."
	case SomeUnconfigured:
		return "Oh no! Some of your courses haven't been configured yet! " +
			"Please try configuring them yourself before asking an administrator to."
	default:
		return ""
	}
}

// DisplayState is how a single course is presented.
type DisplayState string

const (
	// Verified means the configuration is locked.
	Verified DisplayState = "verified"

	// ConfiguredByOther means the course is usable but nobody verified it.
	ConfiguredByOther DisplayState = "configured_by_other"

	// Unconfigured means the course needs a form configuration.
	Unconfigured DisplayState = "unconfigured"
)

// String returns the string representation of the state.
func (s DisplayState) String() string {
	return string(s)
}

// Label returns the short status text for the course.
func (s DisplayState) Label() string {
	switch s {
	case Verified:
		return "Configuration verified"
	case ConfiguredByOther:
		return "Configured by other user"
	case Unconfigured:
		return "Not configured"
	default:
		return ""
	}
}

// Marker returns the visual marker paired with the state.
func (s DisplayState) Marker() string {
	switch s {
	case Verified:
		return "✔✔"
	case ConfiguredByOther:
		return "✔"
	case Unconfigured:
		return "!"
	default:
		return ""
	}
}

// ActionLabel returns the label of the action offered for the course.
func (s DisplayState) ActionLabel() string {
	switch s {
	case Verified:
		return "View configuration"
	case ConfiguredByOther:
		return "Edit configuration"
	case Unconfigured:
		return "Configure"
	default:
		return ""
	}
}

// usable reports whether an unlocked course can already be filled in.
func usable(c CourseRecord) bool {
	return c.FormConfigPresent || !c.HasAttendanceForm
}

// Classify returns the aggregate status of courses.
//
// Rules are checked in order and the first match wins:
//  1. some unlocked course is usable: [SomeUnverifiedButConfigured]
//  2. some course is unlocked: [SomeUnconfigured]
//  3. otherwise (including no courses): [AllVerified]
//
// Rule 1 is checked across the whole set before rule 2, so a set that mixes
// usable and unusable unlocked courses reports the milder status.
func Classify(courses []CourseRecord) AggregateStatus {
	for _, c := range courses {
		if !c.ConfigurationLocked && usable(c) {
			return SomeUnverifiedButConfigured
		}
	}
	for _, c := range courses {
		if !c.ConfigurationLocked {
			return SomeUnconfigured
		}
	}
	return AllVerified
}

// ClassifyOne returns the display state of a single course.
func ClassifyOne(course CourseRecord) DisplayState {
	switch {
	case course.ConfigurationLocked:
		return Verified
	case usable(course):
		return ConfiguredByOther
	default:
		return Unconfigured
	}
}

// CourseEntry pairs a course with its display state.
type CourseEntry struct {
	Course CourseRecord
	State  DisplayState
}

// Report is the classified view of one course set.
type Report struct {
	Status  AggregateStatus
	Entries []CourseEntry
}

// Resolve classifies courses as a whole and one by one. Entries keep the
// input order. The input is copied; later changes to it do not affect the
// report.
func Resolve(courses []CourseRecord) Report {
	entries := make([]CourseEntry, len(courses))
	for i, c := range courses {
		c.KnownSlots = append([]string(nil), c.KnownSlots...)
		entries[i] = CourseEntry{Course: c, State: ClassifyOne(c)}
	}
	return Report{
		Status:  Classify(courses),
		Entries: entries,
	}
}

// Count returns how many entries are in state s.
func (r Report) Count(s DisplayState) int {
	n := 0
	for _, e := range r.Entries {
		if e.State == s {
			n++
		}
	}
	return n
}
