package fenetre

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nffu/fenetre/dashboard"
	"github.com/nffu/fenetre/internal/lockbox"
	"github.com/nffu/fenetre/internal/server"
	"github.com/nffu/fenetre/internal/store"
)

const (
	defaultPort    = 8080
	defaultTimeout = 10 * time.Second
)

// ErrNoCredentials is returned by [Fenetre.Discover] when the account has no
// lockbox credentials stored, so there are no courses to discover.
var ErrNoCredentials = errors.New("no lockbox credentials stored")

// Fenetre watches lockbox course discovery for one account and serves the
// result as a live dashboard.
//
// Fenetre is created using [New] with functional options and started with
// [Fenetre.Start]. The typical lifecycle is:
//
//	app, err := fenetre.New(
//	    fenetre.WithBaseURL("https://fenetre.example.com"),
//	    fenetre.WithHeaders("Cookie", "session="+token),
//	)
//	if err != nil {
//	    slog.Error("failed to create fenetre", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	app.Start(ctx) // blocks until context cancelled
type Fenetre struct {
	title           string
	baseURL         string
	headers         map[string]string
	timeout         time.Duration
	port            int
	backoff         BackoffPolicy
	logger          *slog.Logger
	reportCallbacks []func(Report)
}

// LockboxError is one form filling failure recorded by the backend.
type LockboxError struct {
	ID         string
	Kind       string
	Message    string
	TimeLogged string
}

// New creates a new [Fenetre] instance with the given options.
//
// The backend address must be configured via [WithBaseURL].
// Other options have sensible defaults:
//   - Port: 8080
//   - Request timeout: 10 seconds
//   - Backoff: [DefaultBackoff]
//
// Returns an error if the base URL is missing or if any option is invalid.
func New(opts ...Option) (*Fenetre, error) {
	cfg := &appConfig{
		headers: make(map[string]string),
		timeout: defaultTimeout,
		port:    defaultPort,
		backoff: DefaultBackoff(),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Fenetre{
		title:           cfg.title,
		baseURL:         cfg.baseURL,
		headers:         cfg.headers,
		timeout:         cfg.timeout,
		port:            cfg.port,
		backoff:         cfg.backoff,
		logger:          logger,
		reportCallbacks: cfg.reportCallbacks,
	}, nil
}

// Start begins course discovery and serves the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The account summary is loaded; discovery runs only when lockbox
//     credentials are stored
//   - Course discovery is polled with backoff until the backend reports it ready
//   - The dashboard is available at http://localhost:<port>
//   - A successful credential update from the dashboard restarts discovery
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails.
func (f *Fenetre) Start(ctx context.Context) error {
	f.logger.Info("fenetre starting", "backend", f.baseURL)
	f.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", f.port))

	if ctx.Err() != nil {
		return nil
	}

	client, err := f.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	snapshots := store.NewMemoryStore()
	watcher := f.newWatcher(client, snapshots)

	g, gctx := errgroup.WithContext(ctx)
	sess := newSession(gctx, client, watcher, f.logger)

	httpServer := server.NewServer(snapshots, sess, f.port, dashboard.Assets, f.title, f.logger)
	if err := httpServer.Listen(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	g.Go(func() error {
		return httpServer.Serve(gctx)
	})
	g.Go(func() error {
		if err := sess.Sync(gctx); err != nil && gctx.Err() == nil {
			// the dashboard shows the error; a refresh retries
			f.logger.Warn("initial account load failed", "error", err)
		}
		<-gctx.Done()
		watcher.Stop()
		return nil
	})

	err = g.Wait()
	f.logger.Info("fenetre stopped")
	return err
}

// Discover runs course discovery once, without the dashboard, and returns
// the classified result.
//
// Returns [ErrNoCredentials] if the account has no lockbox credentials, and
// the polling error if discovery fails or ctx ends first.
func (f *Fenetre) Discover(ctx context.Context) (Report, error) {
	client, err := f.newClient()
	if err != nil {
		return Report{}, err
	}
	defer client.Close()

	info, err := client.UserInfo(ctx)
	if err != nil {
		return Report{}, err
	}
	if !info.LockboxCredentialsPresent {
		return Report{}, ErrNoCredentials
	}

	var report Report
	watcher := f.newWatcher(client, store.NewMemoryStore())
	watcher.OnReport(func(r Report) { report = r })

	watcher.Activate(ctx, 0)
	if err := watcher.Wait(ctx); err != nil {
		watcher.Stop()
		return Report{}, err
	}
	if ctx.Err() != nil {
		return Report{}, ctx.Err()
	}
	return report, nil
}

// LockboxErrors returns the form filling failures recorded for the account.
func (f *Fenetre) LockboxErrors(ctx context.Context) ([]LockboxError, error) {
	client, err := f.newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	failures, err := client.Failures(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LockboxError, len(failures))
	for i, fl := range failures {
		out[i] = LockboxError{ID: fl.ID, Kind: fl.Kind, Message: fl.Message, TimeLogged: fl.TimeLogged}
	}
	return out, nil
}

// DeleteLockboxError dismisses one recorded failure.
func (f *Fenetre) DeleteLockboxError(ctx context.Context, id string) error {
	client, err := f.newClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.DeleteFailure(ctx, id)
}

// Port returns the configured HTTP port for the dashboard server.
func (f *Fenetre) Port() int {
	return f.port
}

// BaseURL returns the configured backend address.
func (f *Fenetre) BaseURL() string {
	return f.baseURL
}

// Backoff returns the configured polling policy.
func (f *Fenetre) Backoff() BackoffPolicy {
	return f.backoff
}

func (f *Fenetre) newClient() (*lockbox.Client, error) {
	client, err := lockbox.NewClient(f.baseURL, f.headers, f.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	return client, nil
}

func (f *Fenetre) newWatcher(source CourseSource, st store.Store) *CourseWatcher {
	w := NewCourseWatcher(source, st, f.backoff, f.logger)
	for _, cb := range f.reportCallbacks {
		w.OnReport(cb)
	}
	return w
}
