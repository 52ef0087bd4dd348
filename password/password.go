// Package password derives and verifies one-way Argon2id password digests.
//
// The salt is stored alongside the digest in the user record rather than
// being encoded into a PHC string, because the persisted record format keeps
// password_hash and password_salt as separate fields.
package password

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"

	"github.com/project-starfall/identity/internal/random"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  int    = 16
	minKeyLength   uint32 = 16
)

// Config holds the Argon2id cost parameters.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  int
	KeyLength   uint32
}

// DefaultConfig returns moderate interactive-login parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher derives and verifies digests with fixed cost parameters. Safe for
// concurrent use.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Memory < minMemoryKB {
		return nil, errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return nil, errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return nil, errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("password key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// NewSalt returns a fresh random salt of the configured length.
func (h *Hasher) NewSalt() ([]byte, error) {
	return random.Salt(h.config.SaltLength)
}

// Hash derives the digest of password under salt. Password bytes are used
// exactly as provided; no Unicode normalization.
func (h *Hasher) Hash(password string, salt []byte) ([]byte, error) {
	if len(salt) < minSaltLength {
		return nil, errors.New("salt too short")
	}

	return argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	), nil
}

// Verify reports whether password derives to digest under salt, in constant
// time with respect to the digest contents.
func (h *Hasher) Verify(password string, salt, digest []byte) bool {
	if len(salt) < minSaltLength || len(digest) == 0 {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		uint32(len(digest)),
	)
	return subtle.ConstantTimeCompare(computed, digest) == 1
}
