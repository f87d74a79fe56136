package auth

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// IssuedKey describes a newly created API key. Key is only available at
// creation; the store keeps its hash.
type IssuedKey struct {
	APIKeyID string
	ClientID string
	SecretID string
	Key      string
}

// CurrentSecretID returns the secret new keys are issued under: the greatest
// secret ID, which for UUIDv7 IDs is the most recently minted.
func CurrentSecretID(secrets map[string][]byte) (string, error) {
	if len(secrets) == 0 {
		return "", ErrNoSecrets
	}
	ids := make([]string, 0, len(secrets))
	for id := range secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[len(ids)-1], nil
}

// CreateAPIKey issues a key for clientID under the current secret and stores its hash.
func (a *Authenticator) CreateAPIKey(ctx context.Context, clientID, name string) (*IssuedKey, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id required")
	}
	secretID, err := CurrentSecretID(a.secrets)
	if err != nil {
		return nil, err
	}

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key id: %w", err)
	}

	_, err = a.queries.ExecContext(ctx, "insert-api-key",
		id.String(), clientID, name, secretID, HashAPIKey(a.secrets[secretID], key), a.now())
	if err != nil {
		return nil, fmt.Errorf("failed to store API key: %w", err)
	}

	return &IssuedKey{APIKeyID: id.String(), ClientID: clientID, SecretID: secretID, Key: key}, nil
}

// RevokeAPIKey marks a key revoked. Returns ErrKeyNotFound if no active key has apiKeyID.
func (a *Authenticator) RevokeAPIKey(ctx context.Context, apiKeyID string) error {
	res, err := a.queries.ExecContext(ctx, "revoke-api-key", a.now(), apiKeyID)
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrKeyNotFound
	}
	return nil
}
