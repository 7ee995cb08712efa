// Package mocklockbox is an in-memory lockbox backend for trying fenetre
// without a real deployment.
//
// Course discovery stays pending for a few polls before it turns ready, the
// stored credentials start empty, and every credential update starts a new
// discovery. A failed fake login is recorded as a lockbox error.
package mocklockbox

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type course struct {
	CourseCode          string          `json:"course_code"`
	ConfigurationLocked bool            `json:"configuration_locked"`
	HasAttendanceForm   bool            `json:"has_attendance_form"`
	FormConfig          json.RawMessage `json:"form_config"`
	KnownSlots          []string        `json:"known_slots"`
}

type lockboxError struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	TimeLogged string `json:"time_logged"`
}

var sampleCourses = []course{
	{CourseCode: "MCV4U1-01", ConfigurationLocked: true, HasAttendanceForm: true,
		FormConfig: json.RawMessage(`{"id":"5f1c"}`), KnownSlots: []string{"1-1", "2-1"}},
	{CourseCode: "SPH4U1-02", HasAttendanceForm: true,
		FormConfig: json.RawMessage(`{"id":"5f2a"}`), KnownSlots: []string{"1-2"}},
	{CourseCode: "ENG4U1-03", HasAttendanceForm: true,
		FormConfig: json.RawMessage(`null`), KnownSlots: []string{"1-3", "2-3"}},
	{CourseCode: "GLC2O1-04", KnownSlots: []string{"2-4"}},
}

// Server holds the mock account state.
type Server struct {
	mu          sync.Mutex
	logger      *slog.Logger
	username    string
	password    string
	active      bool
	pendingLeft int
	errors      []lockboxError
}

// New returns a mock backend with no stored credentials.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/me", s.handleMe).Methods(http.MethodGet)
	api := r.PathPrefix("/api/v1/me").Subrouter()
	api.HandleFunc("/lockbox", s.handleUpdate).Methods(http.MethodPatch)
	api.HandleFunc("/lockbox/courses", s.handleCourses).Methods(http.MethodGet)
	api.HandleFunc("/lockbox_errors", s.handleErrors).Methods(http.MethodGet)
	api.HandleFunc("/lockbox_errors/{id}", s.handleDeleteError).Methods(http.MethodDelete)
	return r
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"username":                    "demo",
		"has_lockbox_integration":     true,
		"lockbox_credentials_present": s.password != "",
		"lockbox_form_active":         s.active,
		"lockbox_error":               len(s.errors) > 0,
		"signed_eula":                 true,
	})
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	// simulate small latency variance
	time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "lockbox credentials are not set"})
		return
	}
	if s.pendingLeft > 0 {
		s.pendingLeft--
		writeJSON(w, http.StatusOK, map[string]any{"status": "pending"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "courses": sampleCourses})
}

type update struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Active   *bool   `json:"active"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var u update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields := map[string][]string{}
	if u.Username != nil && *u.Username == "" {
		fields["username"] = []string{"This field may not be blank."}
	}
	if u.Password != nil && *u.Password == "" {
		fields["password"] = []string{"This field may not be blank."}
	}
	if u.Username != nil && u.Password == nil && s.password == "" {
		fields["password"] = []string{"Field may not be null."}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request", "extra": fields})
		return
	}

	if u.Username != nil {
		s.username = *u.Username
	}
	if u.Password != nil {
		s.password = *u.Password
		if s.password == "wrong" {
			s.logError("bad-password", "lockbox rejected the stored credentials")
		}
	}
	if u.Active != nil {
		s.active = *u.Active
	}

	// each update starts a fresh discovery
	s.pendingLeft = 2 + rand.Intn(4)
	s.logger.Info("lockbox updated", "username", s.username, "active", s.active, "pending_polls", s.pendingLeft)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := append([]lockboxError{}, s.errors...)
	writeJSON(w, http.StatusOK, map[string]any{"lockbox_errors": errs})
}

func (s *Server) handleDeleteError(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.errors {
		if e.ID == id {
			s.errors = append(s.errors[:i], s.errors[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "no such lockbox error"})
}

// logError must be called with s.mu held.
func (s *Server) logError(kind, message string) {
	s.errors = append(s.errors, lockboxError{
		ID:         uuid.NewString(),
		Kind:       kind,
		Message:    message,
		TimeLogged: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
