package fenetre

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// appConfig holds mutable state during Fenetre construction.
type appConfig struct {
	title           string
	baseURL         string
	headers         map[string]string
	timeout         time.Duration
	port            int
	backoff         BackoffPolicy
	logger          *slog.Logger
	reportCallbacks []func(Report)
}

// Option is a function that configures a [Fenetre] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithBaseURL], [WithHeaders], [WithTimeout], [WithPort],
// [WithBackoff], [WithLogger], [WithReportCallback], [WithTitle].
type Option func(*appConfig) error

// WithBaseURL sets the address of the lockbox backend.
//
// Required. Only http and https URLs are accepted.
//
// Example:
//
//	app, err := fenetre.New(
//	    fenetre.WithBaseURL("https://fenetre.example.com"),
//	)
func WithBaseURL(rawURL string) Option {
	return func(cfg *appConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base URL must use http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("base URL must have a host")
		}
		cfg.baseURL = rawURL
		return nil
	}
}

// WithHeaders adds HTTP headers sent with every backend request, typically
// the session cookie.
//
// Arguments are key-value pairs. Can be called multiple times; later values
// for the same key win.
//
// Example:
//
//	app, err := fenetre.New(
//	    fenetre.WithBaseURL(base),
//	    fenetre.WithHeaders("Cookie", "session="+token),
//	)
//
// Returns an error if an odd number of arguments is given or a key is blank.
func WithHeaders(keyValues ...string) Option {
	return func(cfg *appConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			if strings.TrimSpace(keyValues[i]) == "" {
				return errors.New("header name cannot be empty")
			}
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the timeout of a single backend request.
// Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *appConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *appConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithBackoff sets the polling policy used while course discovery is pending.
//
// Example:
//
//	app, err := fenetre.New(
//	    fenetre.WithBaseURL(base),
//	    fenetre.WithBackoff(fenetre.BackoffPolicy{
//	        Initial:    500 * time.Millisecond,
//	        Factor:     1.5,
//	        Max:        10 * time.Second,
//	        MaxElapsed: 5 * time.Minute,
//	    }),
//	)
//
// Returns an error if the policy is invalid (see [BackoffPolicy.Validate]).
func WithBackoff(policy BackoffPolicy) Option {
	return func(cfg *appConfig) error {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("invalid backoff policy: %w", err)
		}
		cfg.backoff = policy
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Fenetre instance.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *appConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithReportCallback registers a function to be called whenever course
// discovery completes.
//
// Multiple callbacks run in registration order. Callbacks are invoked
// synchronously from the polling goroutine and must not block. Panics within
// callbacks are recovered and logged.
//
// Example:
//
//	app, err := fenetre.New(
//	    fenetre.WithBaseURL(base),
//	    fenetre.WithReportCallback(func(r fenetre.Report) {
//	        if r.Status == fenetre.SomeUnconfigured {
//	            log.Printf("%d courses need a form", r.Count(fenetre.Unconfigured))
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithReportCallback(cb func(Report)) Option {
	return func(cfg *appConfig) error {
		if cb == nil {
			return nil
		}
		cfg.reportCallbacks = append(cfg.reportCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "fenetre".
func WithTitle(title string) Option {
	return func(cfg *appConfig) error {
		cfg.title = title
		return nil
	}
}
