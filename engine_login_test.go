package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginAndAuthenticate(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	uid, err := e.Register(ctx, "alice", "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := e.Login(ctx, uid, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("wrong password: got %v, want ErrPasswordMismatch", err)
	}
	if _, err := e.Login(ctx, uid+100, "hunter22"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("unknown uid: got %v, want ErrPasswordMismatch", err)
	}

	tok, err := e.Login(ctx, uid, "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	got, err := e.AuthenticateToken(ctx, tok)
	if err != nil {
		t.Fatalf("AuthenticateToken: %v", err)
	}
	if got != uid {
		t.Fatalf("token resolved to uid %d, want %d", got, uid)
	}
}

func TestTokenExpiry(t *testing.T) {
	e, clock := newTestEngine(t, func(cfg *Config) {
		cfg.Token.TTL = time.Hour
	})
	ctx := context.Background()

	uid, _ := e.Register(ctx, "alice", "alice@example.com", "hunter22")
	tok, err := e.Login(ctx, uid, "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	clock.Advance(59 * time.Minute)
	if _, err := e.AuthenticateToken(ctx, tok); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}

	// Past the TTL the token must fail even though no sweep has run.
	clock.Advance(2 * time.Minute)
	if _, err := e.AuthenticateToken(ctx, tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expired token: got %v, want ErrTokenInvalid", err)
	}
}

func TestLogoutIsPermanent(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	uid, _ := e.Register(ctx, "alice", "alice@example.com", "hunter22")
	tok, _ := e.Login(ctx, uid, "hunter22")

	if err := e.Logout(ctx, tok); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := e.AuthenticateToken(ctx, tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("after logout: got %v, want ErrTokenInvalid", err)
	}
	if err := e.Logout(ctx, tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("double logout: got %v, want ErrTokenInvalid", err)
	}
}

func TestRefreshKeepsOldTokenValid(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	uid, _ := e.Register(ctx, "alice", "alice@example.com", "hunter22")
	old, _ := e.Login(ctx, uid, "hunter22")

	fresh, err := e.Refresh(ctx, old)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if fresh == old {
		t.Fatal("Refresh returned the same token")
	}

	for _, tok := range []string{old, fresh} {
		got, err := e.AuthenticateToken(ctx, tok)
		if err != nil {
			t.Fatalf("AuthenticateToken(%q): %v", tok, err)
		}
		if got != uid {
			t.Fatalf("token resolved to uid %d, want %d", got, uid)
		}
	}

	if _, err := e.Refresh(ctx, "no-such-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh with bogus token: got %v, want ErrTokenInvalid", err)
	}
}

func TestUserInfoProjection(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	uid, _ := e.Register(ctx, "alice", "alice@example.com", "hunter22")
	tok, _ := e.Login(ctx, uid, "hunter22")

	info, err := e.UserInfo(ctx, tok)
	if err != nil {
		t.Fatalf("UserInfo: %v", err)
	}
	want := UserInfo{UID: uid, Username: "alice", Email: "alice@example.com", Active: true, Verified: true}
	if info != want {
		t.Fatalf("UserInfo = %+v, want %+v", info, want)
	}

	if _, err := e.UserInfo(ctx, "bogus"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("UserInfo with bogus token: got %v, want ErrTokenInvalid", err)
	}
}
