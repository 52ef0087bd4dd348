package identity

import (
	"context"
	"fmt"
	"strings"
)

// allowedPunctuation is the punctuation permitted in usernames and in each
// side of an email address, beyond ASCII alphanumerics.
const allowedPunctuation = ",._+-()[]{}|"

// Register validates and creates a new account, returning its uid.
//
// A username must be non-empty, start with an ASCII letter, and contain only
// ASCII alphanumerics or one of `,._+-()[]{}|` thereafter. An email must be
// two such parts joined by exactly one '@'. A name that fails the rules or
// is already taken yields [ErrUsernameInvalid] or [ErrEmailInvalid].
//
// The new uid is allocated from a monotonic counter and never reused.
func (e *Engine) Register(ctx context.Context, username, email, pass string) (uint32, error) {
	if e == nil || e.hasher == nil {
		return 0, ErrEngineNotReady
	}
	if e.closed.Load() {
		return 0, ErrEngineClosed
	}

	if !validName(username) || e.usernames.Contains(username) {
		e.metricInc(MetricRegisterRejected)
		e.emitAudit(ctx, auditEventRegister, false, 0, ErrUsernameInvalid, func() map[string]string {
			return map[string]string{"username": username}
		})
		return 0, ErrUsernameInvalid
	}
	if !validEmail(email) || e.emails.Contains(email) {
		e.metricInc(MetricRegisterRejected)
		e.emitAudit(ctx, auditEventRegister, false, 0, ErrEmailInvalid, func() map[string]string {
			return map[string]string{"email": email}
		})
		return 0, ErrEmailInvalid
	}

	salt, err := e.hasher.NewSalt()
	if err != nil {
		return 0, fmt.Errorf("generate salt: %w", err)
	}
	hash, err := e.hasher.Hash(pass, salt)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	uid := e.maxUID.Add(1)

	// The Contains checks above are advisory; the index inserts are the
	// authoritative uniqueness decision under a concurrent registration
	// race. The uid burned on a lost race is never reused, which is fine:
	// the counter only promises monotonicity.
	if err := e.usernames.Insert(username, uid); err != nil {
		e.metricInc(MetricRegisterRejected)
		return 0, ErrUsernameInvalid
	}
	if err := e.emails.Insert(email, uid); err != nil {
		_ = e.usernames.Remove(uid)
		e.metricInc(MetricRegisterRejected)
		return 0, ErrEmailInvalid
	}

	rec := UserRecord{
		UID:          uid,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		Profile:      map[string]any{},
	}
	e.usersMu.Lock()
	e.users[uid] = rec
	e.usersMu.Unlock()

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, uid, nil, func() map[string]string {
		return map[string]string{"username": username}
	})
	return uid, nil
}

// validName reports whether s satisfies the character rules shared by
// usernames and email parts: non-empty, first character an ASCII letter,
// every later character ASCII alphanumeric or allowed punctuation.
func validName(s string) bool {
	if s == "" {
		return false
	}
	first := s[0]
	if !('a' <= first && first <= 'z' || 'A' <= first && first <= 'Z') {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case strings.IndexByte(allowedPunctuation, c) >= 0:
		default:
			return false
		}
	}
	return true
}

// validEmail reports whether s is two valid name parts joined by exactly
// one '@'.
func validEmail(s string) bool {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return false
	}
	return validName(local) && validName(domain)
}
