package auth

import "errors"

// Authentication errors. Missing, malformed, unknown and mismatched keys all
// surface as unauthenticated so a caller cannot probe which keys exist;
// revoked keys are distinguished because the owner needs to know to rotate.
var (
	ErrMissingKey       = errors.New("API key required in X-API-Key header or x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
	ErrUnavailable      = errors.New("key store unavailable")
	ErrNoSecrets        = errors.New("no HMAC secrets configured")
	ErrKeyNotFound      = errors.New("API key not found or already revoked")
)
