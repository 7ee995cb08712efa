package lockbox

import (
	"bytes"
	"encoding/json"
)

// job states reported by the course discovery endpoint
const (
	JobPending = "pending"
	JobReady   = "ready"
)

// CourseJob is the payload of the course discovery endpoint.
type CourseJob struct {
	// Status is "pending" while the background job runs, "ready" afterwards.
	Status string `json:"status"`

	// Courses is only meaningful once the job is no longer pending.
	Courses []Course `json:"courses"`
}

// Pending reports whether the discovery job is still running.
func (j CourseJob) Pending() bool {
	return j.Status == JobPending
}

// Course is one course as reported by the backend.
type Course struct {
	CourseCode          string   `json:"course_code"`
	ConfigurationLocked bool     `json:"configuration_locked"`
	HasAttendanceForm   bool     `json:"has_attendance_form"`
	KnownSlots          []string `json:"known_slots"`

	// FormConfig is an opaque object, or null when nobody configured the form.
	FormConfig json.RawMessage `json:"form_config"`
}

// FormConfigPresent reports whether the backend sent a usable form configuration.
// Missing, null, false, empty string and zero all count as absent.
func (c Course) FormConfigPresent() bool {
	raw := bytes.TrimSpace(c.FormConfig)
	switch string(raw) {
	case "", "null", "false", `""`, "0":
		return false
	}
	return true
}

// UserInfo is the current user's account summary.
type UserInfo struct {
	Username                  string `json:"username"`
	Admin                     bool   `json:"admin"`
	HasDiscordIntegration     bool   `json:"has_discord_integration"`
	HasLockboxIntegration     bool   `json:"has_lockbox_integration"`
	LockboxCredentialsPresent bool   `json:"lockbox_credentials_present"`
	LockboxFormActive         bool   `json:"lockbox_form_active"`
	LockboxError              bool   `json:"lockbox_error"`
	SignedEULA                bool   `json:"signed_eula"`
}

// Update is a partial lockbox update. Nil fields are left unchanged.
type Update struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u Update) Empty() bool {
	return u.Username == nil && u.Password == nil && u.Active == nil
}

// Failure is an error the background automation logged for this user.
type Failure struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	TimeLogged string `json:"time_logged"`
}

type failureList struct {
	Failures []Failure `json:"lockbox_errors"`
}
