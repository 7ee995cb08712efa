package fenetre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestDiscover(t *testing.T) {
	fb, ts := newFakeLockbox(t, 2)

	var called int
	app, err := New(
		WithBaseURL(ts.URL),
		WithBackoff(fastBackoff()),
		WithLogger(testLogger()),
		WithReportCallback(func(Report) { called++ }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report, err := app.Discover(ctx)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if report.Status != SomeUnconfigured {
		t.Errorf("Status = %v, want %v", report.Status, SomeUnconfigured)
	}
	if len(report.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(report.Entries))
	}
	if report.Entries[0].State != Verified || report.Entries[1].State != Unconfigured {
		t.Errorf("states = %v, %v", report.Entries[0].State, report.Entries[1].State)
	}
	if !report.Entries[0].Course.FormConfigPresent {
		t.Error("form_config object should count as present")
	}
	if _, courses := fb.counts(); courses != 3 {
		t.Errorf("courses fetched %d times, want 3", courses)
	}
	if called != 1 {
		t.Errorf("report callback called %d times, want 1", called)
	}
}

func TestDiscover_NoCredentials(t *testing.T) {
	fb, ts := newFakeLockbox(t, 0)
	fb.credentials = false

	app, _ := New(WithBaseURL(ts.URL), WithLogger(testLogger()))

	_, err := app.Discover(context.Background())
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Discover() error = %v, want ErrNoCredentials", err)
	}
}

func TestDiscover_ContextCancelled(t *testing.T) {
	_, ts := newFakeLockbox(t, 1000)

	app, _ := New(
		WithBaseURL(ts.URL),
		WithBackoff(BackoffPolicy{Initial: time.Hour, Factor: 1, Max: time.Hour}),
		WithLogger(testLogger()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := app.Discover(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Discover() error = %v, want deadline exceeded", err)
	}
}

func TestLockboxErrors(t *testing.T) {
	fb, ts := newFakeLockbox(t, 0)
	fb.failures = []map[string]string{
		{"id": "5f1", "kind": "bad-password", "message": "login failed", "time_logged": "2020-09-10T08:00:00Z"},
		{"id": "5f2", "kind": "submit-error", "message": "form closed", "time_logged": "2020-09-11T08:00:00Z"},
	}
	app, _ := New(WithBaseURL(ts.URL), WithLogger(testLogger()))

	errs, err := app.LockboxErrors(context.Background())
	if err != nil {
		t.Fatalf("LockboxErrors() error = %v", err)
	}
	if len(errs) != 2 || errs[1].Kind != "submit-error" || errs[0].TimeLogged != "2020-09-10T08:00:00Z" {
		t.Errorf("LockboxErrors() = %+v", errs)
	}

	if err := app.DeleteLockboxError(context.Background(), "5f2"); err != nil {
		t.Fatalf("DeleteLockboxError() error = %v", err)
	}
	if len(fb.deleted) != 1 || fb.deleted[0] != "5f2" {
		t.Errorf("deleted = %v", fb.deleted)
	}
}

// freePort returns a port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// TestStart_ServesDiscoveredCourses runs the whole application against a
// fake backend and reads the result through the dashboard API.
func TestStart_ServesDiscoveredCourses(t *testing.T) {
	_, ts := newFakeLockbox(t, 1)
	port := freePort(t)

	app, err := New(
		WithBaseURL(ts.URL),
		WithPort(port),
		WithBackoff(fastBackoff()),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/courses", port)
	deadline := time.Now().Add(5 * time.Second)
	var phase string
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			var snap struct {
				Phase     string `json:"phase"`
				Aggregate string `json:"aggregate"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&snap)
			_ = resp.Body.Close()
			phase = snap.Phase
			if phase == "ready" {
				if snap.Aggregate != string(SomeUnconfigured) {
					t.Errorf("aggregate = %q, want some_unconfigured", snap.Aggregate)
				}
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if phase != "ready" {
		t.Errorf("last phase = %q, want ready", phase)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	app, _ := New(WithBaseURL("http://127.0.0.1:1"), WithPort(freePort(t)), WithLogger(testLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Start() did not return immediately with cancelled context")
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	app, _ := New(
		WithBaseURL("http://127.0.0.1:1"),
		WithPort(ln.Addr().(*net.TCPAddr).Port),
		WithLogger(testLogger()),
	)

	err = app.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to start HTTP server") {
		t.Errorf("Start() error = %v, want a bind failure", err)
	}
}
