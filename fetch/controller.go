package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/project-starfall/identity"
	"github.com/project-starfall/identity/client"
)

// Decision is the outcome of resolving one request's identity. When
// Redirect is non-empty the caller should send the visitor there instead
// of rendering the page; Identity is still populated either way.
type Decision struct {
	Identity Identity
	Redirect string
}

// ShortCircuit reports whether the request should be answered with a
// redirect rather than handled.
func (d Decision) ShortCircuit() bool { return d.Redirect != "" }

// Config tunes the freshness windows.
type Config struct {
	// HalfValidTime is the age at which a cached identity is still served
	// but scheduled for refresh. Must be positive and less than
	// CacheValidTime.
	HalfValidTime time.Duration

	// CacheValidTime is the age past which a cached identity is no longer
	// trusted at all.
	CacheValidTime time.Duration

	// RefreshPath is where stale-but-usable requests are redirected to.
	// Requests already under this path are never redirected.
	RefreshPath string
}

// Remote is the credential-service surface the controller needs. *client.Client
// satisfies it.
type Remote interface {
	FetchSelf(ctx context.Context, origin identity.Origin, tok string) (client.UserPayload, error)
}

// Stats is a point-in-time copy of the controller's resolution counters,
// one per outcome of the freshness state machine.
type Stats struct {
	Guest   uint64
	Fresh   uint64
	Stale   uint64
	Expired uint64
}

// Controller resolves the identity behind each request from its session,
// re-validating against the owning credential service when the cache ages
// past its freshness windows.
type Controller struct {
	remote      Remote
	halfValid   time.Duration
	cacheValid  time.Duration
	refreshPath string
	log         *slog.Logger
	now         func() time.Time

	guestCount   atomic.Uint64
	freshCount   atomic.Uint64
	staleCount   atomic.Uint64
	expiredCount atomic.Uint64
}

// Stats returns the resolution counters accumulated so far.
func (c *Controller) Stats() Stats {
	return Stats{
		Guest:   c.guestCount.Load(),
		Fresh:   c.freshCount.Load(),
		Stale:   c.staleCount.Load(),
		Expired: c.expiredCount.Load(),
	}
}

// Option adjusts optional Controller behavior.
type Option func(*Controller)

// WithLogger routes the controller's fetch-failure logging to log.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithClock overrides the controller's time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController validates cfg and builds a Controller around remote.
func NewController(remote Remote, cfg Config, opts ...Option) (*Controller, error) {
	if remote == nil {
		return nil, fmt.Errorf("fetch: remote client is required")
	}
	if cfg.HalfValidTime <= 0 || cfg.CacheValidTime <= cfg.HalfValidTime {
		return nil, fmt.Errorf("fetch: freshness windows must satisfy 0 < half (%v) < full (%v)",
			cfg.HalfValidTime, cfg.CacheValidTime)
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/user/refresh"
	}

	c := &Controller{
		remote:      remote,
		halfValid:   cfg.HalfValidTime,
		cacheValid:  cfg.CacheValidTime,
		refreshPath: cfg.RefreshPath,
		log:         slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve determines the identity for a request at path using the state in
// sess. It mutates sess as needed: caching fresh identities, clearing
// credentials that the remote service rejected.
//
// The possible outcomes, in order of evaluation:
//
//   - no token in the session: Guest, no remote call
//   - token but no cache: synchronous fetch; on failure the token, cache,
//     and host keys are all cleared and Guest is returned
//   - cache younger than the half-valid window: served as-is, no remote call
//   - cache between the windows: served, but re-fetched and re-cached, and
//     the request is redirected through the refresh path unless it is
//     already under it
//   - cache older than the full window: synchronous fetch; on failure only
//     the cache key is dropped (the token may still be good) and Guest is
//     returned
func (c *Controller) Resolve(ctx context.Context, sess Session, path string) Decision {
	origin := c.origin(sess)

	tok, ok := sess.Get(KeyAuthToken)
	if !ok || tok == "" {
		c.guestCount.Add(1)
		return Decision{Identity: Guest(origin)}
	}

	raw, ok := sess.Get(KeyUserCache)
	if !ok {
		return c.fetchInitial(ctx, sess, origin, tok)
	}

	cached, err := decodeCache(raw)
	if err != nil {
		c.log.Warn("discarding undecodable identity cache", "error", err)
		sess.Delete(KeyUserCache)
		return c.fetchInitial(ctx, sess, origin, tok)
	}
	cached.Origin = origin

	age := c.now().Sub(time.Unix(cached.CachedAt, 0))
	switch {
	case age < c.halfValid:
		c.freshCount.Add(1)
		return Decision{Identity: cached}

	case age <= c.cacheValid:
		c.staleCount.Add(1)
		return c.refreshStale(ctx, sess, origin, tok, cached, path)

	default:
		c.expiredCount.Add(1)
		return c.fetchExpired(ctx, sess, origin, tok)
	}
}

func (c *Controller) origin(sess Session) identity.Origin {
	host, _ := sess.Get(KeyHost)
	return identity.ParseOrigin(host)
}

// fetchInitial handles a token with no cached identity. A failure here
// means the token itself is untrustworthy, so all credential state goes.
func (c *Controller) fetchInitial(ctx context.Context, sess Session, origin identity.Origin, tok string) Decision {
	id, err := c.fetch(ctx, sess, origin, tok)
	if err != nil {
		c.log.Info("token rejected on initial fetch, clearing session credentials",
			"origin", origin.Host(), "error", err)
		sess.Delete(KeyAuthToken)
		sess.Delete(KeyUserCache)
		sess.Delete(KeyHost)
		return Decision{Identity: Guest(origin)}
	}
	return Decision{Identity: id}
}

// refreshStale serves the still-valid cache while re-validating it, and
// bounces the visitor through the refresh path so the next page load sees
// the updated state.
func (c *Controller) refreshStale(ctx context.Context, sess Session, origin identity.Origin, tok string, cached Identity, path string) Decision {
	id := cached
	if fresh, err := c.fetch(ctx, sess, origin, tok); err == nil {
		id = fresh
	} else {
		c.log.Warn("stale identity re-fetch failed, serving cached copy",
			"origin", origin.Host(), "uid", cached.UID, "error", err)
	}

	d := Decision{Identity: id}
	if !strings.HasPrefix(path, c.refreshPath) {
		d.Redirect = c.refreshPath + "?redirect=" + url.QueryEscape(path)
	}
	return d
}

// fetchExpired handles a cache too old to trust. Only the cache goes on
// failure; the token may still work once the service is reachable again.
func (c *Controller) fetchExpired(ctx context.Context, sess Session, origin identity.Origin, tok string) Decision {
	id, err := c.fetch(ctx, sess, origin, tok)
	if err != nil {
		c.log.Warn("expired identity re-fetch failed, dropping cache",
			"origin", origin.Host(), "error", err)
		sess.Delete(KeyUserCache)
		return Decision{Identity: Guest(origin)}
	}
	return Decision{Identity: id}
}

// fetch pulls the account from the credential service and writes it back
// to the session cache.
func (c *Controller) fetch(ctx context.Context, sess Session, origin identity.Origin, tok string) (Identity, error) {
	payload, err := c.remote.FetchSelf(ctx, origin, tok)
	if err != nil {
		return Identity{}, err
	}

	id := FromPayload(payload, origin, c.now())
	encoded, err := encodeCache(id)
	if err != nil {
		return Identity{}, err
	}
	sess.Set(KeyUserCache, encoded)
	return id, nil
}
