package identity

import (
	"errors"
	"time"
)

// Config carries every tunable of the credential store and its collaborators.
//
// Config instances are copied by [Builder.WithConfig]; mutating one after
// Build has no effect on a running engine.
type Config struct {
	Store   StoreConfig
	Token   TokenConfig
	Cache   CacheConfig
	Client  ClientConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls persistence of the user record map.
type StoreConfig struct {
	// UsersFile is the JSON document the record map is loaded from at
	// startup and flushed to periodically. Empty disables persistence
	// entirely (memory-only store, useful in tests).
	UsersFile string

	// FlushInterval is the period of the background flush/sweep task.
	FlushInterval time.Duration

	// AdminUIDs lists user ids allowed to create accounts over the wire.
	AdminUIDs []uint32
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls bearer token minting and storage.
type TokenConfig struct {
	// TTL is the lifetime of a freshly minted token.
	TTL time.Duration

	// Length is the number of alphanumeric characters in a token.
	Length int

	// RedisPrefix namespaces token keys when a Redis-backed token store
	// is in use. Ignored by the in-memory store.
	RedisPrefix string
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig controls the client-side freshness windows. A cached identity
// younger than HalfValidTime is served as-is; between HalfValidTime and
// CacheValidTime it is served once and revalidated; older than CacheValidTime
// it must revalidate before being served.
type CacheConfig struct {
	HalfValidTime  time.Duration
	CacheValidTime time.Duration

	// RefreshPath is the route the stale-cache redirect targets. Requests
	// already on this path are exempt from the redirect.
	RefreshPath string
}

// ClientConfig controls the remote identity client.
type ClientConfig struct {
	// RequestTimeout bounds every remote call. A timed-out call is
	// indistinguishable from a transport failure.
	RequestTimeout time.Duration

	// LocalAddress is the bind address the local origin resolves to,
	// e.g. "localhost:3003".
	LocalAddress string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// SinkTimeout bounds each delivery to the sink; zero lets a stuck
	// sink block the dispatcher.
	SinkTimeout time.Duration
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the reference deployment runs
// with: 180s flush, 1h tokens, 30m/1h freshness windows.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			FlushInterval: 180 * time.Second,
		},
		Token: TokenConfig{
			TTL:         time.Hour,
			Length:      32,
			RedisPrefix: "identity:token:",
		},
		Cache: CacheConfig{
			HalfValidTime:  30 * time.Minute,
			CacheValidTime: time.Hour,
			RefreshPath:    "/user/refresh",
		},
		Client: ClientConfig{
			RequestTimeout: 10 * time.Second,
			LocalAddress:   "localhost:3003",
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  256,
			DropIfFull:  true,
			SinkTimeout: time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Store.AdminUIDs = append([]uint32(nil), cfg.Store.AdminUIDs...)
	return out
}

func validateConfig(cfg Config) error {
	if cfg.Store.FlushInterval <= 0 {
		return errors.New("store flush interval must be positive")
	}
	if cfg.Token.TTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if cfg.Token.Length < 32 {
		return errors.New("token length must be >= 32")
	}
	if cfg.Cache.HalfValidTime <= 0 {
		return errors.New("cache half valid time must be positive")
	}
	if cfg.Cache.HalfValidTime >= cfg.Cache.CacheValidTime {
		return errors.New("cache half valid time must be below cache valid time")
	}
	if cfg.Cache.RefreshPath == "" {
		return errors.New("cache refresh path must be set")
	}
	if cfg.Client.RequestTimeout <= 0 {
		return errors.New("client request timeout must be positive")
	}
	return nil
}
