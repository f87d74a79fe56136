package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keyPrefix     = "sl"
	keyVersion    = "v1"
	secretIDLen   = 32 // UUIDv7 without hyphens
	randomDataLen = 64 // 256 bits, hex
)

// ParseAPIKey extracts secret_id and random_data from an API key.
// Format: sl-v1-<secret_id>-<random_data>, both parts lowercase hex.
// Returns ErrInvalidKeyFormat if the format doesn't match.
func ParseAPIKey(key string) (secretID, randomData string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 4 || parts[0] != keyPrefix || parts[1] != keyVersion {
		return "", "", ErrInvalidKeyFormat
	}

	secretID, randomData = parts[2], parts[3]
	if len(secretID) != secretIDLen || len(randomData) != randomDataLen {
		return "", "", ErrInvalidKeyFormat
	}
	if !isLowerHex(secretID) || !isLowerHex(randomData) {
		return "", "", ErrInvalidKeyFormat
	}

	return secretID, randomData, nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// ComputeHMAC computes the HMAC-SHA256 of apiKey under secret.
func ComputeHMAC(secret []byte, apiKey string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(apiKey))
	return h.Sum(nil)
}

// HashAPIKey returns the hex HMAC stored in api_keys.key_hash.
func HashAPIKey(secret []byte, apiKey string) string {
	return hex.EncodeToString(ComputeHMAC(secret, apiKey))
}

// FormatAPIKey constructs an API key from components.
func FormatAPIKey(secretID, randomData string) string {
	return fmt.Sprintf("%s-%s-%s-%s", keyPrefix, keyVersion, secretID, randomData)
}

// GenerateAPIKey returns a new random key bound to secretID.
func GenerateAPIKey(secretID string) (string, error) {
	buf := make([]byte, randomDataLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return FormatAPIKey(secretID, hex.EncodeToString(buf)), nil
}
