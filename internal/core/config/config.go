// Package config provides configuration management for surveylogic services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServiceConfig holds configuration for the visibility evaluation service.
type ServiceConfig struct {
	Host              string
	Port              int // gRPC
	HTTPPort          int // REST and metrics
	RequestTimeout    time.Duration
	MaxRulesPerSurvey int
	CacheURL          string // redis://...; empty disables the rule cache
	CacheTTL          time.Duration
}

// DefaultServiceConfig returns configuration with default values.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Host:              "0.0.0.0",
		Port:              50051,
		HTTPPort:          8080,
		RequestTimeout:    5 * time.Second,
		MaxRulesPerSurvey: 2000,
		CacheURL:          "",
		CacheTTL:          5 * time.Minute,
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports SL_HMAC_SECRET (single) and SL_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("SL_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("SL_HMAC_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Numbered secrets keep old and new keys valid during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("SL_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' in environment (check SL_HMAC_SECRET and SL_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lowercase hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}
