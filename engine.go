package identity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/project-starfall/identity/internal/audit"
	"github.com/project-starfall/identity/internal/bimap"
	"github.com/project-starfall/identity/password"
	"github.com/project-starfall/identity/token"
)

// Engine is the credential store: the authoritative in-memory account and
// token database with periodic disk persistence.
//
// Engine instances are built once through [Builder.Build] and shared by
// reference; all methods are safe for concurrent use. The record map, the
// username index, the email index, and the token table each carry their own
// lock, so readers of one never contend with writers of another. Mutating
// operations that touch one index do so atomically with respect to that
// index; no cross-index ordering is promised.
type Engine struct {
	config Config

	usersMu sync.RWMutex
	users   map[uint32]UserRecord

	usernames *bimap.Map
	emails    *bimap.Map
	tokens    token.Store
	maxUID    atomic.Uint32

	hasher  *password.Hasher
	audit   *audit.Dispatcher
	metrics *Metrics
	log     *slog.Logger
	now     func() time.Time

	flushDone chan struct{}
	flushWG   sync.WaitGroup
	closed    atomic.Bool
}

// Close performs a final flush, stops the background flush/sweep task, and
// drains the audit dispatcher. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	close(e.flushDone)
	e.flushWG.Wait()
	e.audit.Close()
}

// AuditDropped returns the number of audit events discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a deep copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// IsAdmin reports whether uid is in the configured administrator list.
func (e *Engine) IsAdmin(uid uint32) bool {
	for _, admin := range e.config.Store.AdminUIDs {
		if admin == uid {
			return true
		}
	}
	return false
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, uid uint32, opErr error, meta func() map[string]string) {
	if e.audit == nil {
		return
	}

	event := audit.Event{
		ID:        uuid.NewString(),
		Timestamp: e.now(),
		EventType: eventType,
		UID:       uid,
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if meta != nil {
		event.Metadata = meta()
	}
	e.audit.Emit(ctx, event)
}

// record returns a copy of uid's record.
func (e *Engine) record(uid uint32) (UserRecord, bool) {
	e.usersMu.RLock()
	defer e.usersMu.RUnlock()
	rec, ok := e.users[uid]
	return rec, ok
}

const (
	auditEventRegister       = "register"
	auditEventLogin          = "login"
	auditEventLogout         = "logout"
	auditEventRefresh        = "token_refresh"
	auditEventPasswordChange = "password_change"
	auditEventUsernameChange = "username_change"
	auditEventEmailChange    = "email_change"
	auditEventFlushFailure   = "flush_failure"
)
