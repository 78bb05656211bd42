package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Tuned for an interactive login path on modest
// hardware: ~64 MiB working set keeps hashing under 100ms while still
// being memory-hard.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 1
	argonKeyLen  = 32

	// SaltLength is the number of random bytes generated per account.
	SaltLength = 16
)

// GenerateSalt returns a fresh random salt for a new credential.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// HashPassword derives the stored hash for a password and salt.
// Deterministic: the same inputs always produce the same output, so
// verification is a recompute-and-compare.
func HashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword reports whether the candidate password matches the
// stored hash. The comparison is constant-time regardless of where the
// hashes first differ.
func VerifyPassword(password string, salt, hash []byte) bool {
	candidate := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(candidate, hash) == 1
}
