// Package token stores the opaque bearer tokens minted by the credential
// store. Tokens are never persisted to disk: the in-memory implementation is
// the default, and the Redis implementation exists for deployments that run
// several credential-service processes behind one host name.
//
// Every implementation upholds the same invariant: a token resolves only
// while now < expires_at. A token that is expired, swept, or revoked is
// absent, not merely marked dead.
package token

import (
	"context"
	"time"
)

// Store is the token table.
type Store interface {
	// Add binds token to uid until expiresAt.
	Add(ctx context.Context, token string, uid uint32, expiresAt time.Time) error

	// Remove revokes token. Removing an absent token is not an error.
	Remove(ctx context.Context, token string) error

	// Resolve returns the uid bound to token, or ok=false when token is
	// unknown or expired.
	Resolve(ctx context.Context, token string) (uid uint32, ok bool, err error)

	// Sweep drops expired tokens and returns how many were removed.
	// Implementations with native expiry may make it a no-op.
	Sweep(ctx context.Context) (int, error)
}
