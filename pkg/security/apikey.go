package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// APIKeyPrefix marks plaintext secrets so leaked keys can be scanned for.
	APIKeyPrefix = "pw_live_"

	apiKeySecretBytes = 32
)

// GenerateAPIKey mints a new plaintext secret and its storable hash. The
// plaintext is shown to the caller exactly once; only the hash is persisted.
func GenerateAPIKey() (plaintext, hash string, err error) {
	buf := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	plaintext = APIKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return plaintext, HashAPIKey(plaintext), nil
}

// HashAPIKey maps a plaintext key to its stored sha256 hex digest.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// APIKeyHashEqual compares two key hashes in constant time.
func APIKeyHashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
