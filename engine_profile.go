package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/project-starfall/identity/internal/bimap"
)

// ChangeUsername rebinds the account behind tok to newUsername. The index
// update is atomic: the old binding is removed and the new one inserted
// under a single writer lock. An account whose reverse index entry is
// missing fails with [ErrUserNotFound] even though the record exists; that
// is a deliberate consistency check against index corruption.
func (e *Engine) ChangeUsername(ctx context.Context, tok, newUsername string) error {
	uid, err := e.AuthenticateToken(ctx, tok)
	if err != nil {
		return err
	}

	if !validName(newUsername) {
		return ErrUsernameInvalid
	}
	if err := e.usernames.Rename(uid, newUsername); err != nil {
		switch {
		case errors.Is(err, bimap.ErrUIDNotFound):
			return ErrUserNotFound
		case errors.Is(err, bimap.ErrNameTaken):
			return ErrUsernameInvalid
		default:
			return err
		}
	}

	if err := e.updateRecord(uid, func(rec *UserRecord) {
		rec.Username = newUsername
	}); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventUsernameChange, true, uid, nil, func() map[string]string {
		return map[string]string{"username": newUsername}
	})
	return nil
}

// ChangeEmail rebinds the account behind tok to newEmail. Semantics mirror
// [Engine.ChangeUsername].
func (e *Engine) ChangeEmail(ctx context.Context, tok, newEmail string) error {
	uid, err := e.AuthenticateToken(ctx, tok)
	if err != nil {
		return err
	}

	if !validEmail(newEmail) {
		return ErrEmailInvalid
	}
	if err := e.emails.Rename(uid, newEmail); err != nil {
		switch {
		case errors.Is(err, bimap.ErrUIDNotFound):
			return ErrUserNotFound
		case errors.Is(err, bimap.ErrNameTaken):
			return ErrEmailInvalid
		default:
			return err
		}
	}

	if err := e.updateRecord(uid, func(rec *UserRecord) {
		rec.Email = newEmail
	}); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventEmailChange, true, uid, nil, nil)
	return nil
}

// ChangePassword rehashes the account's password under a fresh salt.
// It succeeds only when oldPass verifies against the stored hash;
// otherwise it fails with [ErrPasswordMismatch].
func (e *Engine) ChangePassword(ctx context.Context, tok, oldPass, newPass string) error {
	uid, err := e.AuthenticateToken(ctx, tok)
	if err != nil {
		return err
	}

	if !e.CheckPassword(ctx, uid, oldPass) {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChange, false, uid, ErrPasswordMismatch, nil)
		return ErrPasswordMismatch
	}

	salt, err := e.hasher.NewSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	hash, err := e.hasher.Hash(newPass, salt)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := e.updateRecord(uid, func(rec *UserRecord) {
		rec.PasswordHash = hash
		rec.PasswordSalt = salt
	}); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, uid, nil, nil)
	return nil
}

// UIDFromIdentifier resolves a user-supplied identifier to a uid. It tries,
// in order: parse as a numeric uid, email index lookup, username index
// lookup. The first match wins; a parseable number is taken at face value
// without checking that the account exists.
func (e *Engine) UIDFromIdentifier(_ context.Context, identifier string) (uint32, error) {
	if n, err := strconv.ParseUint(identifier, 10, 32); err == nil {
		return uint32(n), nil
	}
	if uid, ok := e.emails.UID(identifier); ok {
		return uid, nil
	}
	if uid, ok := e.usernames.UID(identifier); ok {
		return uid, nil
	}
	return 0, ErrUserNotFound
}

// Profile returns the opaque profile object of the account behind tok.
func (e *Engine) Profile(ctx context.Context, tok string) (map[string]any, error) {
	uid, err := e.AuthenticateToken(ctx, tok)
	if err != nil {
		return nil, err
	}

	rec, ok := e.record(uid)
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneProfile(rec.Profile), nil
}

// ListPublicUsers returns every record with the password fields stripped,
// ordered by uid.
func (e *Engine) ListPublicUsers(context.Context) []PublicUser {
	e.usersMu.RLock()
	out := make([]PublicUser, 0, len(e.users))
	for uid, rec := range e.users {
		out = append(out, PublicUser{
			UID:      uid,
			Username: rec.Username,
			Email:    rec.Email,
			Profile:  cloneProfile(rec.Profile),
		})
	}
	e.usersMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// updateRecord mutates uid's record under the writer lock.
func (e *Engine) updateRecord(uid uint32, mutate func(*UserRecord)) error {
	e.usersMu.Lock()
	defer e.usersMu.Unlock()

	rec, ok := e.users[uid]
	if !ok {
		return ErrUserNotFound
	}
	mutate(&rec)
	e.users[uid] = rec
	return nil
}

func cloneProfile(profile map[string]any) map[string]any {
	out := make(map[string]any, len(profile))
	for k, v := range profile {
		out[k] = v
	}
	return out
}
