package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisStore keeps the token table in Redis with native key expiry, letting
// several credential-service processes share one table. Nothing is written
// without a TTL, so the table still never outlives its tokens.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock overrides the store's time source.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore returns a token table backed by client. prefix namespaces
// the keys.
func NewRedisStore(client *redis.Client, prefix string, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

// Add binds token to uid until expiresAt via SET with expiry. An already
// expired deadline is treated as a no-op rather than an unbounded key.
func (s *RedisStore) Add(ctx context.Context, token string, uid uint32, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.key(token), strconv.FormatUint(uint64(uid), 10), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Remove revokes token.
func (s *RedisStore) Remove(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Resolve returns the uid bound to token. Redis expiry guarantees a dead
// token is already absent.
func (s *RedisStore) Resolve(ctx context.Context, token string) (uint32, bool, error) {
	val, err := s.client.Get(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	uid, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		// Corrupt value; treat the token as unresolvable.
		return 0, false, nil
	}
	return uint32(uid), true, nil
}

// Sweep is a no-op: Redis drops expired keys itself.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}
