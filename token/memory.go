package token

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	uid       uint32
	expiresAt int64 // unix seconds
}

// MemoryStore keeps the token table in a process-local map guarded by its
// own RWMutex, independent of every other lock in the system, so token
// resolution never contends with record reads or writes.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]entry
	now    func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the store's time source. Tests use it to age tokens
// without sleeping.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore returns an empty in-memory token table.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tokens: make(map[string]entry),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add binds token to uid until expiresAt.
func (s *MemoryStore) Add(_ context.Context, token string, uid uint32, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = entry{uid: uid, expiresAt: expiresAt.Unix()}
	return nil
}

// Remove revokes token.
func (s *MemoryStore) Remove(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

// Resolve returns the uid bound to token. An entry past its expiry does not
// resolve even if the sweep has not run yet.
func (s *MemoryStore) Resolve(_ context.Context, token string) (uint32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tokens[token]
	if !ok || e.expiresAt <= s.now().Unix() {
		return 0, false, nil
	}
	return e.uid, true, nil
}

// Sweep removes every expired entry.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := s.now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, e := range s.tokens {
		if e.expiresAt <= now {
			delete(s.tokens, token)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live-or-not-yet-swept entries. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
