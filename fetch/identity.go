// Package fetch decides, per request, whether a session's cached identity
// is still trustworthy and orchestrates re-fetching it from the owning
// credential service when it is not. The session backend and the transport
// are both injected; this package owns only the freshness policy.
package fetch

import (
	"encoding/json"
	"time"

	"github.com/project-starfall/identity"
	"github.com/project-starfall/identity/client"
)

// Session keys the controller reads and writes. Anything else stored in
// the session is left alone.
const (
	KeyAuthToken = "auth_token"
	KeyHost      = "host"
	KeyUserCache = "user_info_cache"
)

// Session is the minimal per-visitor string store the controller needs.
// Implementations are expected to be request-scoped and not shared across
// goroutines.
type Session interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// Identity is the resolved account for one request, either freshly fetched
// or served from the session cache.
type Identity struct {
	UID      uint32          `json:"uid"`
	Origin   identity.Origin `json:"-"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Active   bool            `json:"is_active"`
	Verified bool            `json:"is_verified"`

	// CachedAt is when this identity was last confirmed against the
	// credential service, as a unix timestamp.
	CachedAt int64 `json:"cached_at"`
}

// IsGuest reports whether this is the anonymous fallback identity.
func (id Identity) IsGuest() bool { return id.UID == 0 }

// Guest is the identity every unauthenticated or failed resolution
// collapses to.
func Guest(origin identity.Origin) Identity {
	return Identity{
		UID:      0,
		Origin:   origin,
		Username: "Guest",
		Email:    "guest@example.com",
		Active:   false,
		Verified: false,
	}
}

// cacheEnvelope is the serialized session-cache form. Origin travels as a
// plain host string so the cache stays a flat JSON object.
type cacheEnvelope struct {
	Identity
	Host string `json:"host"`
}

// StoreCache writes id into sess under the cache key, alongside the host
// it came from.
func StoreCache(sess Session, id Identity) error {
	encoded, err := encodeCache(id)
	if err != nil {
		return err
	}
	sess.Set(KeyUserCache, encoded)
	sess.Set(KeyHost, id.Origin.Host())
	return nil
}

// ClearCredentials removes every session key this package owns.
func ClearCredentials(sess Session) {
	sess.Delete(KeyAuthToken)
	sess.Delete(KeyUserCache)
	sess.Delete(KeyHost)
}

func encodeCache(id Identity) (string, error) {
	data, err := json.Marshal(cacheEnvelope{Identity: id, Host: id.Origin.Host()})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeCache(raw string) (Identity, error) {
	var env cacheEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Identity{}, err
	}
	env.Identity.Origin = identity.ParseOrigin(env.Host)
	return env.Identity, nil
}

// FromPayload converts a wire user object into a cached identity stamped
// at now.
func FromPayload(p client.UserPayload, origin identity.Origin, now time.Time) Identity {
	return Identity{
		UID:      p.UID,
		Origin:   origin,
		Username: p.Username,
		Email:    p.Email,
		Active:   p.Active,
		Verified: p.Verified,
		CachedAt: now.Unix(),
	}
}
