package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegisterAssignsSequentialUIDs(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	first, err := e.Register(ctx, "alice", "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register alice: %v", err)
	}
	second, err := e.Register(ctx, "bob", "bob@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register bob: %v", err)
	}

	if first != 1 || second != 2 {
		t.Fatalf("got uids %d, %d, want 1, 2", first, second)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Register(ctx, "alice", "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := e.Register(ctx, "alice", "other@example.com", "hunter22"); !errors.Is(err, ErrUsernameInvalid) {
		t.Fatalf("duplicate username: got %v, want ErrUsernameInvalid", err)
	}
	if _, err := e.Register(ctx, "carol", "alice@example.com", "hunter22"); !errors.Is(err, ErrEmailInvalid) {
		t.Fatalf("duplicate email: got %v, want ErrEmailInvalid", err)
	}

	// Failed attempts must not consume uids.
	uid, err := e.Register(ctx, "carol", "carol@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register carol: %v", err)
	}
	if uid == 1 {
		t.Fatalf("carol got alice's uid")
	}
}

func TestRegisterUsernameValidation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	valid := []string{
		"a",
		"alice",
		"a1234",
		"x" + strings.Repeat("b", 30),
		"u,._+-()[]{}|",
	}
	for _, name := range valid {
		if _, err := e.Register(ctx, name, name+"@example.com", "hunter22"); err != nil {
			t.Errorf("Register(%q): unexpected error %v", name, err)
		}
	}

	invalid := []string{
		"",
		// The first character must be an ASCII letter, so digits and
		// punctuation from the allowed set still cannot lead.
		"1abc",
		"_abc",
		",leading",
		// Anything outside ASCII alphanumerics and the allowed
		// punctuation is rejected wherever it appears.
		"ab cd",
		"ab@cd",
		"Ωmega",
		"abc\ndef",
	}
	for _, name := range invalid {
		if _, err := e.Register(ctx, name, "mail"+name+"@example.com", "hunter22"); !errors.Is(err, ErrUsernameInvalid) {
			t.Errorf("Register(%q): got %v, want ErrUsernameInvalid", name, err)
		}
	}
}

func TestRegisterEmailValidation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	cases := []struct {
		email string
		ok    bool
	}{
		{"alice@example.com", true},
		{"a.b-c@host1", true},
		{"a@b", true},
		{"noat", false},
		{"two@@example.com", false},
		{"a@b@c", false},
		// Both sides of the @ must themselves be valid names, which
		// rules out empty parts and leading digits.
		{"@example.com", false},
		{"alice@", false},
		{"1alice@example.com", false},
		{"alice@1example.com", false},
		{"al ice@example.com", false},
	}
	for i, tc := range cases {
		name := "user" + string(rune('a'+i))
		_, err := e.Register(ctx, name, tc.email, "hunter22")
		if tc.ok && err != nil {
			t.Errorf("Register(%q): unexpected error %v", tc.email, err)
		}
		if !tc.ok && !errors.Is(err, ErrEmailInvalid) {
			t.Errorf("Register(%q): got %v, want ErrEmailInvalid", tc.email, err)
		}
	}
}

func TestRegisterPasswordsAreSaltedPerUser(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	uid1, _ := e.Register(ctx, "alice", "alice@example.com", "same-password")
	uid2, _ := e.Register(ctx, "bob", "bob@example.com", "same-password")

	rec1, _ := e.record(uid1)
	rec2, _ := e.record(uid2)
	if string(rec1.PasswordHash) == string(rec2.PasswordHash) {
		t.Fatal("identical passwords produced identical digests; salts are not per-user")
	}
	if string(rec1.PasswordHash) == "same-password" {
		t.Fatal("password stored in the clear")
	}
}
