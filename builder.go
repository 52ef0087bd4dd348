package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/project-starfall/identity/internal/audit"
	"github.com/project-starfall/identity/internal/bimap"
	internalmetrics "github.com/project-starfall/identity/internal/metrics"
	"github.com/project-starfall/identity/password"
	"github.com/project-starfall/identity/token"
)

// Builder assembles an [Engine]. Construction is allocation-only until
// Build, which loads the persisted record map and starts the background
// flush/sweep task.
type Builder struct {
	config Config

	redis      *redis.Client
	tokenStore token.Store
	auditSink  AuditSink
	logger     *slog.Logger
	clock      func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the token table with Redis instead of process memory.
// Ignored when WithTokenStore is also set.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithTokenStore injects a custom token table.
func (b *Builder) WithTokenStore(store token.Store) *Builder {
	b.tokenStore = store
	return b
}

// WithAuditSink sets the destination for audit events. Without one, events
// are dispatched to a no-op sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine's structured logger. Defaults to a logger that
// discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the engine's time source. Tests use it to control
// token expiry without sleeping.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration, loads the persisted record map, and
// returns a running engine. The builder cannot be reused.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if err := validateConfig(b.config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tokens := b.tokenStore
	if tokens == nil {
		if b.redis != nil {
			tokens = token.NewRedisStore(b.redis, b.config.Token.RedisPrefix, token.WithRedisClock(now))
		} else {
			tokens = token.NewMemoryStore(token.WithClock(now))
		}
	}

	e := &Engine{
		config:    b.config,
		users:     make(map[uint32]UserRecord),
		usernames: bimap.New(),
		emails:    bimap.New(),
		tokens:    tokens,
		hasher:    hasher,
		metrics:   internalmetrics.New(internalmetrics.Config{Enabled: b.config.Metrics.Enabled}),
		log:       logger,
		now:       now,
		flushDone: make(chan struct{}),
	}

	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:     b.config.Audit.Enabled,
		BufferSize:  b.config.Audit.BufferSize,
		DropIfFull:  b.config.Audit.DropIfFull,
		SinkTimeout: b.config.Audit.SinkTimeout,
	}, b.auditSink)

	if err := e.load(); err != nil {
		e.audit.Close()
		return nil, fmt.Errorf("load users: %w", err)
	}

	e.flushWG.Add(1)
	go e.flushLoop()

	return e, nil
}
