package fenetre

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastBackoff keeps polling tests quick.
func fastBackoff() BackoffPolicy {
	return BackoffPolicy{Initial: time.Millisecond, Factor: 2, Max: 5 * time.Millisecond}
}

const sampleCourses = `[
	{"course_code": "MCV4U1-01", "configuration_locked": true, "has_attendance_form": true,
	 "form_config": {"id": "5f1"}, "known_slots": ["1-1", "2-1"]},
	{"course_code": "SPH4U1-02", "configuration_locked": false, "has_attendance_form": true,
	 "form_config": null, "known_slots": ["1-2"]}
]`

// fakeLockbox is an in-memory lockbox backend. Each discovery reports pending
// a fixed number of times before it is ready; a successful PATCH starts a new
// discovery.
type fakeLockbox struct {
	mu          sync.Mutex
	pending     int
	pendingLeft int
	credentials bool
	courses     string
	fieldErrors map[string][]string
	failures    []map[string]string
	meFails     bool

	meCalls     int
	courseCalls int
	patches     []map[string]any
	deleted     []string
}

func newFakeLockbox(t *testing.T, pending int) (*fakeLockbox, *httptest.Server) {
	t.Helper()
	fb := &fakeLockbox{
		pending:     pending,
		pendingLeft: pending,
		credentials: true,
		courses:     sampleCourses,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/me", fb.handleMe)
	mux.HandleFunc("GET /api/v1/me/lockbox/courses", fb.handleCourses)
	mux.HandleFunc("PATCH /api/v1/me/lockbox", fb.handlePatch)
	mux.HandleFunc("GET /api/v1/me/lockbox_errors", fb.handleFailures)
	mux.HandleFunc("DELETE /api/v1/me/lockbox_errors/{id}", fb.handleDelete)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return fb, ts
}

func (fb *fakeLockbox) handleMe(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.meCalls++
	if fb.meFails {
		writeTestJSON(w, http.StatusInternalServerError, map[string]any{"error": "db down"})
		return
	}
	writeTestJSON(w, http.StatusOK, map[string]any{
		"username":                    "student1",
		"has_lockbox_integration":     true,
		"lockbox_credentials_present": fb.credentials,
		"lockbox_form_active":         fb.credentials,
	})
}

func (fb *fakeLockbox) handleCourses(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.courseCalls++
	if fb.pendingLeft > 0 {
		fb.pendingLeft--
		writeTestJSON(w, http.StatusOK, map[string]any{"status": "pending"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status": "ready", "courses": `+fb.courses+`}`)
}

func (fb *fakeLockbox) handlePatch(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeTestJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.patches = append(fb.patches, body)
	if len(fb.fieldErrors) > 0 {
		writeTestJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request", "extra": fb.fieldErrors})
		return
	}
	if _, ok := body["password"]; ok {
		fb.credentials = true
	}
	fb.pendingLeft = fb.pending
	w.WriteHeader(http.StatusNoContent)
}

func (fb *fakeLockbox) handleFailures(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	failures := fb.failures
	if failures == nil {
		failures = []map[string]string{}
	}
	writeTestJSON(w, http.StatusOK, map[string]any{"lockbox_errors": failures})
}

func (fb *fakeLockbox) handleDelete(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.deleted = append(fb.deleted, r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (fb *fakeLockbox) counts() (me, courses int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.meCalls, fb.courseCalls
}

func writeTestJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
