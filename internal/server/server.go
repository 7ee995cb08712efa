package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nffu/fenetre/internal/lockbox"
	"github.com/nffu/fenetre/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// maxRequestBodySize bounds PATCH bodies; credentials are tiny.
	maxRequestBodySize = 64 << 10

	defaultTitle     = "fenetre"
	titlePlaceholder = "{{.Title}}"
)

// Backend performs account operations on behalf of the dashboard.
type Backend interface {
	UserInfo(ctx context.Context) (lockbox.UserInfo, error)
	UpdateLockbox(ctx context.Context, update lockbox.Update) error
	Failures(ctx context.Context) ([]lockbox.Failure, error)
	DeleteFailure(ctx context.Context, id string) error

	// Refresh restarts course discovery.
	Refresh(ctx context.Context) error
}

// Server handles HTTP requests for the dashboard and its API.
//
// Routes:
//   - GET /: the embedded dashboard
//   - GET /api/courses: the current course snapshot
//   - GET /api/sse: Server-Sent Events stream of snapshots
//   - POST /api/courses/refresh: restart course discovery
//   - GET /api/me: account summary
//   - PATCH /api/lockbox: update credentials or enable form filling
//   - GET /api/lockbox/errors, DELETE /api/lockbox/errors/{id}: recorded failures
//
// Account routes are only registered when a [Backend] is given.
type Server struct {
	store   store.Store
	backend Backend
	port    int
	assets  fs.FS
	title   string
	logger  *slog.Logger

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a new HTTP [Server]. assets and backend may be nil.
// The server does not listen until [Server.Listen] is called.
func NewServer(st store.Store, backend Backend, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   st,
		backend: backend,
		port:    port,
		assets:  assets,
		title:   title,
		logger:  logger,
	}
}

// Handler returns the router with all routes and middleware installed.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverPanics)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/courses", s.handleCourses).Methods(http.MethodGet)
	api.HandleFunc("/sse", s.handleSSE).Methods(http.MethodGet)

	if s.backend != nil {
		api.HandleFunc("/courses/refresh", s.handleRefresh).Methods(http.MethodPost)
		api.HandleFunc("/me", s.handleUserInfo).Methods(http.MethodGet)
		api.HandleFunc("/lockbox", s.handleUpdateLockbox).Methods(http.MethodPatch)
		api.HandleFunc("/lockbox/errors", s.handleFailures).Methods(http.MethodGet)
		api.HandleFunc("/lockbox/errors/{id}", s.handleDeleteFailure).Methods(http.MethodDelete)
	}

	if s.assets != nil {
		r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	}

	return r
}

// Listen binds the configured port. Binding happens before serving so that
// a port conflict is reported to the caller synchronously.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve handles requests until ctx is cancelled, then shuts down gracefully
// with a 5-second timeout. Returns nil on graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	if ln == nil {
		s.mu.Unlock()
		return errors.New("server is not listening")
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx, so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
	}
	return nil
}

// recoverPanics turns a handler panic into a 500 carrying a correlation ID
// that is also logged with the stack.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				correlationID := uuid.NewString()
				s.logger.Error("handler panic",
					"correlation_id", correlationID,
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, statusBody{
					Status: fmt.Sprintf("internal error (correlation_id: %s)", correlationID),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// title is user-supplied; escape before substitution
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleCourses returns the current course snapshot as JSON.
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, s.store.Get())
}

// handleSSE streams course snapshots via Server-Sent Events.
//
// The current snapshot is sent first, then every stored snapshot. Writes use
// deadlines so that a slow or vanished client cannot pin the handler.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	send := func(snap store.Snapshot) error {
		data, err := json.Marshal(snap)
		if err != nil {
			s.logger.Error("failed to encode snapshot", "error", err)
			return nil
		}
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// subscribe before reading the current snapshot so nothing is missed
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	current := s.store.Get()
	if err := send(current); err != nil {
		return
	}
	last := current.Revision

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if snap.Revision <= last {
				continue
			}
			last = snap.Revision
			if err := send(snap); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleRefresh restarts course discovery.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Refresh(r.Context()); err != nil {
		s.writeBackendError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusBody{Status: "refreshing"})
}

// handleUserInfo returns the account summary.
func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.backend.UserInfo(r.Context())
	if err != nil {
		s.writeBackendError(w, "load account", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleUpdateLockbox applies a partial credential update. Backend field
// errors are passed through per field so the form can show them inline.
func (s *Server) handleUpdateLockbox(w http.ResponseWriter, r *http.Request) {
	var update lockbox.Update
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, statusBody{Status: "malformed request body"})
		return
	}
	if update.Empty() {
		writeJSON(w, http.StatusBadRequest, statusBody{Status: "nothing to update"})
		return
	}

	if err := s.backend.UpdateLockbox(r.Context(), update); err != nil {
		var apiErr *lockbox.APIError
		if errors.As(err, &apiErr) && apiErr.IsValidation() {
			writeJSON(w, http.StatusBadRequest, statusBody{Status: apiErr.Message, Fields: apiErr.Extra})
			return
		}
		s.writeBackendError(w, "update lockbox", err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "updated"})
}

// handleFailures lists the recorded form filling errors.
func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	failures, err := s.backend.Failures(r.Context())
	if err != nil {
		s.writeBackendError(w, "list lockbox errors", err)
		return
	}
	if failures == nil {
		failures = []lockbox.Failure{}
	}
	writeJSON(w, http.StatusOK, map[string][]lockbox.Failure{"lockbox_errors": failures})
}

// handleDeleteFailure dismisses one recorded error.
func (s *Server) handleDeleteFailure(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.backend.DeleteFailure(r.Context(), id); err != nil {
		s.writeBackendError(w, "delete lockbox error", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusBody is the JSON shape of every non-data response.
type statusBody struct {
	Status string            `json:"status"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeBackendError reports a failed backend call. Client errors from the
// backend keep their status code; anything else becomes 502.
func (s *Server) writeBackendError(w http.ResponseWriter, op string, err error) {
	var apiErr *lockbox.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		writeJSON(w, apiErr.StatusCode, statusBody{Status: apiErr.Message})
		return
	}
	s.logger.Warn("backend call failed", "op", op, "error", err)
	writeJSON(w, http.StatusBadGateway, statusBody{Status: fmt.Sprintf("failed to %s: %v", op, err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
