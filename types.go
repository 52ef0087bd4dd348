package identity

import (
	"io"

	internalaudit "github.com/project-starfall/identity/internal/audit"
	internalmetrics "github.com/project-starfall/identity/internal/metrics"
)

// UserRecord is the full account record owned by the credential store.
// PasswordHash is a one-way Argon2id digest; PasswordSalt is the per-user
// random salt it was derived with. Profile is an opaque JSON object the
// store persists but never interprets.
type UserRecord struct {
	UID          uint32         `json:"-"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	PasswordHash []byte         `json:"password_hash"`
	PasswordSalt []byte         `json:"password_salt"`
	Profile      map[string]any `json:"profile"`
}

// PublicUser is a UserRecord projection with the password fields removed,
// as returned by [Engine.ListPublicUsers].
type PublicUser struct {
	UID      uint32         `json:"uid"`
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Profile  map[string]any `json:"profile"`
}

// UserInfo is the /users/me projection returned by [Engine.UserInfo].
// Active and Verified are reported for the benefit of the caching layer;
// the local store has no suspension or verification lifecycle, so both are
// always true for a resolvable token.
type UserInfo struct {
	UID      uint32 `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"is_active"`
	Verified bool   `json:"is_verified"`
}

// localHost is the reserved origin name for the in-process credential store.
const localHost = "local"

// Origin identifies the server that owns an identity: either this process's
// own credential store, or a named remote host. It is both a cache key
// dimension and the address the freshness layer revalidates against.
type Origin struct {
	host string
}

// LocalOrigin returns the origin of the in-process credential store.
func LocalOrigin() Origin { return Origin{host: localHost} }

// RemoteOrigin returns the origin of a named remote credential service.
func RemoteOrigin(host string) Origin { return Origin{host: host} }

// ParseOrigin maps the reserved name "local" (or the empty string) to the
// local origin and anything else to a remote host.
func ParseOrigin(s string) Origin {
	if s == "" || s == localHost {
		return LocalOrigin()
	}
	return RemoteOrigin(s)
}

// IsLocal reports whether the origin is the in-process store.
func (o Origin) IsLocal() bool { return o.host == "" || o.host == localHost }

// Host returns the origin's host name, or "local" for the local origin.
func (o Origin) Host() string {
	if o.IsLocal() {
		return localHost
	}
	return o.host
}

func (o Origin) String() string { return o.Host() }

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricRegisterSuccess counts successful registrations.
	MetricRegisterSuccess = internalmetrics.MetricRegisterSuccess
	// MetricRegisterRejected counts registrations failing validation.
	MetricRegisterRejected = internalmetrics.MetricRegisterRejected
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure counts rejected logins.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricLogout counts revoked tokens.
	MetricLogout = internalmetrics.MetricLogout
	// MetricRefreshSuccess counts token refreshes.
	MetricRefreshSuccess = internalmetrics.MetricRefreshSuccess
	// MetricRefreshFailure counts refresh attempts with a dead token.
	MetricRefreshFailure = internalmetrics.MetricRefreshFailure
	// MetricPasswordChangeSuccess counts accepted password changes.
	MetricPasswordChangeSuccess = internalmetrics.MetricPasswordChangeSuccess
	// MetricPasswordChangeInvalidOld counts password changes rejected
	// because the old password did not verify.
	MetricPasswordChangeInvalidOld = internalmetrics.MetricPasswordChangeInvalidOld
	// MetricFlushSuccess counts completed background flushes.
	MetricFlushSuccess = internalmetrics.MetricFlushSuccess
	// MetricFlushFailure counts background flushes that failed to write.
	MetricFlushFailure = internalmetrics.MetricFlushFailure
	// MetricTokensSwept counts tokens removed by the expiry sweep.
	MetricTokensSwept = internalmetrics.MetricTokensSwept
)

// Metrics holds atomic counters for engine operations.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot
