package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyHashCost is the bcrypt work factor for API keys
const APIKeyHashCost = 12

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var alphabetSize = big.NewInt(int64(len(alphanumeric)))

// Digest computes the hex SHA-256 of a secret. It is deterministic, so it can
// be stored in an indexed column and used for point lookups.
func Digest(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// SaltedHash hashes a secret with bcrypt. Two calls on the same input yield
// different outputs, so lookups have to verify candidates one by one.
func SaltedHash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), APIKeyHashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySaltedHash checks a secret against a bcrypt hash. A malformed hash
// never verifies.
func VerifySaltedHash(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// GenerateSecret returns n characters drawn uniformly from [A-Za-z0-9]
func GenerateSecret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}

	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		buf[i] = alphanumeric[idx.Int64()]
	}
	return string(buf), nil
}
