package identity

import (
	"context"
	"fmt"

	"github.com/project-starfall/identity/internal/random"
)

// CheckPassword reports whether pass verifies against uid's stored hash.
// It has no side effects; unknown uids simply fail.
func (e *Engine) CheckPassword(_ context.Context, uid uint32, pass string) bool {
	rec, ok := e.record(uid)
	if !ok {
		return false
	}
	return e.hasher.Verify(pass, rec.PasswordSalt, rec.PasswordHash)
}

// Login verifies uid's password and mints a fresh bearer token valid for
// the configured TTL. A wrong password yields [ErrPasswordMismatch].
func (e *Engine) Login(ctx context.Context, uid uint32, pass string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}

	if !e.CheckPassword(ctx, uid, pass) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, uid, ErrPasswordMismatch, nil)
		return "", ErrPasswordMismatch
	}

	tok, err := e.mintToken(ctx, uid)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return "", err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, uid, nil, nil)
	return tok, nil
}

// Logout revokes tok. An unknown or expired token yields [ErrTokenInvalid].
// After Logout the token never resolves again.
func (e *Engine) Logout(ctx context.Context, tok string) error {
	uid, ok, err := e.tokens.Resolve(ctx, tok)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}
	if !ok {
		return ErrTokenInvalid
	}
	if err := e.tokens.Remove(ctx, tok); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, uid, nil, nil)
	return nil
}

// Refresh mints a fresh token for the account bound to oldTok.
//
// The old token is NOT revoked: both tokens stay valid until their own
// expiries. Callers that want single-token semantics must Logout the old
// one explicitly.
func (e *Engine) Refresh(ctx context.Context, oldTok string) (string, error) {
	uid, ok, err := e.tokens.Resolve(ctx, oldTok)
	if err != nil {
		return "", fmt.Errorf("resolve token: %w", err)
	}
	if !ok {
		e.metricInc(MetricRefreshFailure)
		return "", ErrTokenInvalid
	}

	tok, err := e.mintToken(ctx, uid)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, true, uid, nil, nil)
	return tok, nil
}

// AuthenticateToken resolves tok to a live uid, or [ErrTokenInvalid].
func (e *Engine) AuthenticateToken(ctx context.Context, tok string) (uint32, error) {
	uid, ok, err := e.tokens.Resolve(ctx, tok)
	if err != nil {
		return 0, fmt.Errorf("resolve token: %w", err)
	}
	if !ok {
		return 0, ErrTokenInvalid
	}
	return uid, nil
}

// UserInfo resolves tok and returns the account's /users/me projection.
func (e *Engine) UserInfo(ctx context.Context, tok string) (UserInfo, error) {
	uid, err := e.AuthenticateToken(ctx, tok)
	if err != nil {
		return UserInfo{}, err
	}

	rec, ok := e.record(uid)
	if !ok {
		return UserInfo{}, ErrUserNotFound
	}
	return UserInfo{
		UID:      uid,
		Username: rec.Username,
		Email:    rec.Email,
		Active:   true,
		Verified: true,
	}, nil
}

func (e *Engine) mintToken(ctx context.Context, uid uint32) (string, error) {
	if e.closed.Load() {
		return "", ErrEngineClosed
	}
	tok, err := random.Token(e.config.Token.Length)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	expires := e.now().Add(e.config.Token.TTL)
	if err := e.tokens.Add(ctx, tok, uid, expires); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return tok, nil
}
