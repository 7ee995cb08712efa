package userinfo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nffu/fenetre/internal/lockbox"
)

// cached reports what Get would return without fetching.
func cached(c *Cache) (lockbox.UserInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info, c.valid
}

func TestCache_GetCaches(t *testing.T) {
	var calls atomic.Int32
	c := New(func(ctx context.Context) (lockbox.UserInfo, error) {
		calls.Add(1)
		return lockbox.UserInfo{Username: "student1", LockboxCredentialsPresent: true}, nil
	})

	if _, ok := cached(c); ok {
		t.Error("cached() on empty cache = ok, want not ok")
	}

	for i := 0; i < 3; i++ {
		info, err := c.Get(context.Background())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if info.Username != "student1" {
			t.Errorf("Username = %q, want %q", info.Username, "student1")
		}
	}

	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", calls.Load())
	}
	if info, ok := cached(c); !ok || !info.LockboxCredentialsPresent {
		t.Errorf("cached() = %+v, %v", info, ok)
	}
}

func TestCache_Invalidate(t *testing.T) {
	var calls atomic.Int32
	c := New(func(ctx context.Context) (lockbox.UserInfo, error) {
		n := calls.Add(1)
		return lockbox.UserInfo{LockboxCredentialsPresent: n > 1}, nil
	})

	info, _ := c.Get(context.Background())
	if info.LockboxCredentialsPresent {
		t.Fatal("first fetch should report no credentials")
	}

	before := c.generation
	c.Invalidate()
	if c.generation == before {
		t.Error("generation did not change after Invalidate()")
	}
	if _, ok := cached(c); ok {
		t.Error("cached() after Invalidate() = ok, want not ok")
	}

	info, _ = c.Get(context.Background())
	if !info.LockboxCredentialsPresent {
		t.Error("Get() after Invalidate() returned the stale summary")
	}
	if calls.Load() != 2 {
		t.Errorf("fetch called %d times, want 2", calls.Load())
	}
}

func TestCache_ErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	errDown := errors.New("backend down")
	c := New(func(ctx context.Context) (lockbox.UserInfo, error) {
		if calls.Add(1) == 1 {
			return lockbox.UserInfo{}, errDown
		}
		return lockbox.UserInfo{Username: "ok"}, nil
	})

	if _, err := c.Get(context.Background()); !errors.Is(err, errDown) {
		t.Fatalf("Get() error = %v, want %v", err, errDown)
	}

	info, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if info.Username != "ok" {
		t.Errorf("Username = %q, want %q", info.Username, "ok")
	}
}

// TestCache_InvalidateDuringFetch verifies that a fetch overtaken by an
// invalidation is not cached.
func TestCache_InvalidateDuringFetch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	c := New(func(ctx context.Context) (lockbox.UserInfo, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return lockbox.UserInfo{}, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background())
	}()

	<-entered
	c.Invalidate()
	close(release)
	<-done

	if _, ok := cached(c); ok {
		t.Error("cached() = ok, want the overtaken fetch to stay uncached")
	}
}

// TestCache_ConcurrentGet verifies that concurrent callers share one fetch.
func TestCache_ConcurrentGet(t *testing.T) {
	var calls atomic.Int32
	c := New(func(ctx context.Context) (lockbox.UserInfo, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return lockbox.UserInfo{Username: "shared"}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background()); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() > 2 {
		t.Errorf("fetch called %d times, want concurrent callers to share a fetch", calls.Load())
	}
}
