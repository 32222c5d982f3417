package storage

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, APIKeyPrefix) {
		t.Errorf("key should start with %q, got: %s", APIKeyPrefix, key)
	}
	if len(key) != len(APIKeyPrefix)+APIKeyLength {
		t.Errorf("expected length %d, got %d", len(APIKeyPrefix)+APIKeyLength, len(key))
	}

	// Two generated keys must differ.
	other, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key == other {
		t.Error("two generated keys should not be equal")
	}
}

func TestExtractKeyPrefix(t *testing.T) {
	key, _ := GenerateAPIKey()
	prefix := ExtractKeyPrefix(key)
	if len(prefix) != APIKeyPrefixLen {
		t.Errorf("expected prefix length %d, got %d", APIKeyPrefixLen, len(prefix))
	}
	if !strings.HasPrefix(key, prefix) {
		t.Error("prefix should be a prefix of the key")
	}

	// Short inputs are returned unchanged.
	if got := ExtractKeyPrefix("qw_"); got != "qw_" {
		t.Errorf("expected short input unchanged, got %q", got)
	}
}

func TestHashAndVerifyKey(t *testing.T) {
	key, _ := GenerateAPIKey()

	hash, err := HashKey(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("unexpected hash format: %s", hash)
	}

	ok, err := VerifyKey(key, hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("correct key should verify")
	}

	ok, err = VerifyKey(key+"tampered", hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("wrong key should not verify")
	}
}

func TestVerifyKey_MalformedHash(t *testing.T) {
	for _, bad := range []string{"", "plainhash", "$argon2i$v=19$m=1,t=1,p=1$c$c"} {
		if _, err := VerifyKey("qw_any", bad); err == nil {
			t.Errorf("expected error for malformed hash %q", bad)
		}
	}
}
