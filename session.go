package fenetre

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nffu/fenetre/internal/lockbox"
	"github.com/nffu/fenetre/internal/userinfo"
)

// session ties the account summary to course discovery. It is the backend
// behind the dashboard's write endpoints.
type session struct {
	client  *lockbox.Client
	users   *userinfo.Cache
	watcher *CourseWatcher
	logger  *slog.Logger

	// base is the parent of every discovery activation; request contexts
	// end too early.
	base context.Context

	mu       sync.Mutex
	revision uint64
}

func newSession(base context.Context, client *lockbox.Client, watcher *CourseWatcher, logger *slog.Logger) *session {
	return &session{
		client:  client,
		users:   userinfo.New(client.UserInfo),
		watcher: watcher,
		logger:  logger,
		base:    base,
	}
}

// Sync starts or disables course discovery depending on whether the account
// has stored credentials. Discovery that is already running for the current
// revision is left alone.
func (s *session) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// the revision moves past anything the watcher no longer shows, so the
	// next successful Sync starts over
	info, err := s.users.Get(ctx)
	if err != nil {
		s.revision++
		s.watcher.Fail(fmt.Errorf("failed to load account: %w", err))
		return err
	}
	if !info.LockboxCredentialsPresent {
		s.revision++
		s.logger.Info("no lockbox credentials stored, course discovery disabled", "user", info.Username)
		s.watcher.Disable()
		return nil
	}
	s.watcher.Activate(s.base, s.revision)
	return nil
}

// Refresh drops cached account state and restarts course discovery.
func (s *session) Refresh(ctx context.Context) error {
	s.bump()
	return s.Sync(ctx)
}

// UserInfo returns the cached account summary.
func (s *session) UserInfo(ctx context.Context) (lockbox.UserInfo, error) {
	return s.users.Get(ctx)
}

// UpdateLockbox applies a credential or enable change. On success the
// backend re-discovers courses, so discovery restarts under a new revision.
// On failure nothing changes locally.
//
// Once the backend accepts the change the update has happened; a failed
// account reload afterwards shows up as an error snapshot, not as an error
// from UpdateLockbox.
func (s *session) UpdateLockbox(ctx context.Context, update lockbox.Update) error {
	if err := s.client.UpdateLockbox(ctx, update); err != nil {
		return err
	}
	s.logger.Info("lockbox settings updated")
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("account reload after lockbox update failed", "error", err)
	}
	return nil
}

// Failures lists the recorded form filling errors.
func (s *session) Failures(ctx context.Context) ([]lockbox.Failure, error) {
	return s.client.Failures(ctx)
}

// DeleteFailure dismisses one recorded error.
func (s *session) DeleteFailure(ctx context.Context, id string) error {
	if err := s.client.DeleteFailure(ctx, id); err != nil {
		return err
	}
	s.users.Invalidate()
	return nil
}

func (s *session) bump() {
	s.users.Invalidate()
	s.mu.Lock()
	s.revision++
	s.mu.Unlock()
}
