// Package identity implements the credential-owning half of a delegated
// identity system: an in-memory account and token store with periodic disk
// persistence, plus the typed operations a credential service exposes over
// its HTTP surface.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// identity is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (UserRecord, PublicUser, Origin). Internal coordination —
// index bookkeeping, audit dispatch, metrics — lives under internal/ and is
// never exported. The consuming half of the system (remote calls and the
// per-request freshness decision) lives in the client and fetch sub-packages
// and talks to this package only through the wire protocol, never in-process.
//
// # What this package must NOT do
//
//   - Render pages, serve static files, or own session cookies; those belong
//     to the host application.
//   - Block a request on the background flush. Flush snapshots under a read
//     lock and writes outside every lock.
//   - Keep a revoked or expired token resolvable. Expired means absent.
package identity
