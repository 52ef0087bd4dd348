package identity

import (
	"sync"
	"testing"
	"time"
)

// testClock is a manually advanced time source shared by an engine and the
// test driving it.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestEngine builds a memory-only engine with a controllable clock.
func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *testClock) {
	t.Helper()

	cfg := defaultConfig()
	cfg.Store.UsersFile = "" // no persistence
	cfg.Audit.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	e, err := New().
		WithConfig(cfg).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(e.Close)
	return e, clock
}
