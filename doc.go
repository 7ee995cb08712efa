// Package fenetre provides the course configuration dashboard for a
// lockbox attendance service: it discovers a student's courses, polls with
// backoff while the backend is still working, and reports which courses are
// ready for automatic attendance form filling.
//
// # Quick Start
//
// Point fenetre at the backend and start the dashboard with graceful shutdown:
//
//	app, _ := fenetre.New(
//	    fenetre.WithBaseURL("https://fenetre.example.com"),
//	    fenetre.WithHeaders("Cookie", "sessionid="+token),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	app.Start(ctx) // blocks until context is cancelled
//
// Or run discovery once without the dashboard:
//
//	report, err := app.Discover(ctx)
//	fmt.Println(report.Status.Message())
//
// # Course Status
//
// Every course is shown in one of three [DisplayState] values:
//
//   - [Verified]: the configuration is locked by an administrator
//   - [ConfiguredByOther]: a usable configuration exists but nobody verified it
//   - [Unconfigured]: the course has an attendance form but no configuration
//
// The whole set is summarised by an [AggregateStatus]; see [Classify] for
// the precedence. Both are pure functions of the course records.
//
// # Polling
//
// Discovery is asynchronous on the backend. While it reports pending, the
// [CourseWatcher] refetches on a capped exponential [BackoffPolicy]. Each
// activation is tied to a revision of the stored credentials: a credential
// update cancels the running activation and starts a new one, and results
// from a superseded activation are never published.
//
// # Architecture
//
// fenetre consists of several internal packages (under internal/):
//
//   - internal/poller: generic backoff poller with at most one active key
//   - internal/lockbox: HTTP client for the backend API
//   - internal/userinfo: cached account summary
//   - internal/store: snapshot storage with pub/sub for real-time updates
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package fenetre
