package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// APIKeyPrefix is the prefix for all Quillway account keys
	APIKeyPrefix = "qw_"
	// APIKeyLength is the number of random characters after the prefix
	APIKeyLength = 64
	// APIKeyPrefixLen is the length of the identifying prefix (e.g., "qw_a1B2c3D4")
	APIKeyPrefixLen = 11 // "qw_" + 8 chars
)

// base62Alphabet contains characters for key generation (0-9, A-Z, a-z)
var base62Alphabet = []byte("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

// GenerateAPIKey creates a new account key with format: qw_ + 64 base62 chars
func GenerateAPIKey() (string, error) {
	result := make([]byte, APIKeyLength)
	alphabetLen := big.NewInt(int64(len(base62Alphabet)))

	for i := 0; i < APIKeyLength; i++ {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		result[i] = base62Alphabet[idx.Int64()]
	}

	return APIKeyPrefix + string(result), nil
}

// ExtractKeyPrefix returns the first 11 chars of a key for identification.
// The prefix narrows the account lookup; the full key is always verified
// against the stored hash.
func ExtractKeyPrefix(key string) string {
	if len(key) < APIKeyPrefixLen {
		return key
	}
	return key[:APIKeyPrefixLen]
}

// argon2id parameters for key hashing.
// Memory: 64MB, Iterations: 1, Parallelism: 4, Salt: 16 bytes, Key: 32 bytes
const (
	argonMemory      uint32 = 64 * 1024
	argonIterations  uint32 = 1
	argonParallelism uint8  = 4
	argonSaltLength         = 16
	argonKeyLength   uint32 = 32
)

// HashKey creates an Argon2id hash of an account key.
// Returns encoded hash in format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func HashKey(key string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(key), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism, b64Salt, b64Hash), nil
}

// VerifyKey checks an account key against its encoded hash in constant time.
func VerifyKey(key, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, errors.New("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, errors.New("unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return false, errors.New("incompatible argon2 version")
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("invalid parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("invalid salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("invalid hash: %w", err)
	}

	otherHash := argon2.IDKey([]byte(key), salt, iterations, memory, parallelism, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}
