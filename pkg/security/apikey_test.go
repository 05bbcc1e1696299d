package security_test

import (
	"strings"
	"testing"

	"github.com/paywallet/paywallet-backend/pkg/security"
)

func TestGenerateAPIKey(t *testing.T) {
	plaintext, hash, err := security.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if !strings.HasPrefix(plaintext, security.APIKeyPrefix) {
		t.Errorf("plaintext %q missing prefix", plaintext)
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(hash))
	}
	if security.HashAPIKey(plaintext) != hash {
		t.Error("hash does not match plaintext digest")
	}
}

func TestGenerateAPIKeyIsUnique(t *testing.T) {
	a, _, err := security.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	b, _, err := security.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if a == b {
		t.Fatal("two generated keys collided")
	}
}

func TestAPIKeyHashEqual(t *testing.T) {
	h := security.HashAPIKey("pw_live_example")
	if !security.APIKeyHashEqual(h, h) {
		t.Error("identical hashes should compare equal")
	}
	if security.APIKeyHashEqual(h, security.HashAPIKey("pw_live_other")) {
		t.Error("different hashes should not compare equal")
	}
}
