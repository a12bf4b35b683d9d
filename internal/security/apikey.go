package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// NewAPIKey generates a fresh municipality API key: 32 random bytes, hex
// encoded. The plaintext is shown once at provisioning time; only its hash
// is stored.
func NewAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashAPIKey returns a SHA-256 hash of the API key, hex-encoded. Lookups go
// through the hash so the raw key is never persisted.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// APIKeyHashEqual performs constant-time comparison of the provided key's
// hash with the stored hash. Returns true only if they match.
func APIKeyHashEqual(providedKey, storedHash string) bool {
	providedHash := HashAPIKey(providedKey)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
