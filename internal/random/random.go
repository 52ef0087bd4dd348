// Package random generates the unguessable values the credential store
// hands out: bearer tokens and per-user password salts.
package random

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Token returns a crypto-random alphanumeric string of the given length.
// 32 characters over a 62-symbol alphabet carry ~190 bits of entropy.
func Token(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("token length must be positive")
	}

	out := make([]byte, length)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphanumeric[n.Int64()]
	}
	return string(out), nil
}

// Salt returns size crypto-random bytes.
func Salt(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("salt size must be positive")
	}

	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
