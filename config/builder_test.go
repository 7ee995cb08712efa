package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nffu/fenetre"
)

func TestBuildOptions_Minimal(t *testing.T) {
	cfg, err := Parse([]byte("backend:\n  base_url: https://fenetre.example.com\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	app, err := fenetre.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if app.BaseURL() != "https://fenetre.example.com" {
		t.Errorf("BaseURL() = %q", app.BaseURL())
	}
	if app.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", app.Port())
	}
	if app.Backoff() != fenetre.DefaultBackoff() {
		t.Errorf("Backoff() = %+v, want the default", app.Backoff())
	}
}

func TestBuildOptions_Backoff(t *testing.T) {
	yaml := `
port: 9000
backend:
  base_url: https://fenetre.example.com
  headers:
    Cookie: sessionid=abc
backoff:
  initial: 2s
  max_attempts: 10
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	app, err := fenetre.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := fenetre.DefaultBackoff()
	want.Initial = 2 * time.Second
	want.MaxAttempts = 10
	if app.Backoff() != want {
		t.Errorf("Backoff() = %+v, want %+v", app.Backoff(), want)
	}
	if app.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", app.Port())
	}
}

func TestBuildOptions_InvalidMergedBackoff(t *testing.T) {
	// initial above the default max is only caught after merging
	cfg := &Config{
		Port:    8080,
		Backend: BackendConfig{BaseURL: "https://fenetre.example.com"},
		Backoff: BackoffConfig{Initial: Duration(time.Minute)},
	}

	_, err := BuildOptions(cfg)
	if err == nil || !strings.Contains(err.Error(), "backoff: max delay") {
		t.Errorf("BuildOptions() error = %v, want a max delay error", err)
	}
}

func TestBuildBackoff_ZeroKeepsDefaults(t *testing.T) {
	if got := BuildBackoff(BackoffConfig{}); got != fenetre.DefaultBackoff() {
		t.Errorf("BuildBackoff(zero) = %+v, want the default", got)
	}
}

func TestMapToKeyValuePairs_Sorted(t *testing.T) {
	got := mapToKeyValuePairs(map[string]string{"X-B": "2", "Cookie": "c", "X-A": "1"})
	want := []string{"Cookie", "c", "X-A", "1", "X-B", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mapToKeyValuePairs() = %v, want %v", got, want)
	}
}
