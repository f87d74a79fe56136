// Package auth provides HMAC-based API key authentication for the gRPC and
// REST surfaces of the visibility service.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// clientIDKey is the context key for storing the authenticated client ID.
const clientIDKey = contextKey("client_id")

// HeaderAPIKey carries the API key on REST requests; gRPC uses the lowercase
// metadata key.
const (
	HeaderAPIKey   = "X-API-Key"
	metadataAPIKey = "x-api-key"
)

// lastUsedThrottle bounds how often last_used_at is written for an active key.
const lastUsedThrottle = time.Minute

// Queries defines the database operations authentication needs.
// Implemented by *db.Queries.
type Queries interface {
	GetContext(ctx context.Context, name string, dest any, args ...any) error
	ExecContext(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 hashes.
// Holds the in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate validates apiKey and returns the owning client ID.
// Each failure mode has its own sentinel; store failures wrap ErrUnavailable.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	// Unique constraint on key_hash ensures a single result
	var result struct {
		APIKeyID   string       `db:"api_key_id"`
		ClientID   string       `db:"client_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}
	err = a.queries.GetContext(ctx, "get-api-key-by-hash", &result, HashAPIKey(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// Best effort; a failed bookkeeping write never denies a valid key
	if now := a.now(); shouldUpdateLastUsed(result.LastUsedAt, now) {
		_, _ = a.queries.ExecContext(ctx, "update-last-used", now, result.APIKeyID)
	}

	return result.ClientID, nil
}

func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > lastUsedThrottle
}

// UnaryInterceptor returns a gRPC interceptor that authenticates requests
// carrying the key in x-api-key metadata. Methods in skip (full method names)
// bypass authentication.
func (a *Authenticator) UnaryInterceptor(skip ...string) grpc.UnaryServerInterceptor {
	open := make(map[string]bool, len(skip))
	for _, m := range skip {
		open[m] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		apiKeys := md.Get(metadataAPIKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		clientID, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			return nil, status.Error(GRPCCode(err), err.Error())
		}

		return handler(WithClientID(ctx, clientID), req)
	}
}

// Middleware returns HTTP middleware that authenticates requests carrying
// the key in the X-API-Key header.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get(HeaderAPIKey)
		if apiKey == "" {
			http.Error(w, ErrMissingKey.Error(), http.StatusUnauthorized)
			return
		}

		clientID, err := a.Authenticate(r.Context(), apiKey)
		if err != nil {
			http.Error(w, err.Error(), HTTPStatus(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
	})
}

// GRPCCode maps an authentication error onto a gRPC status code.
// Revoked keys get PERMISSION_DENIED (the key exists but is blocked); every
// other rejection is UNAUTHENTICATED so responses do not confirm key existence.
func GRPCCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return codes.PermissionDenied
	case errors.Is(err, ErrUnavailable):
		return codes.Unavailable
	default:
		return codes.Unauthenticated
	}
}

// HTTPStatus maps an authentication error onto an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return http.StatusForbidden
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// WithClientID returns ctx carrying clientID.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// ClientIDFromContext extracts the client ID from context.
// Returns empty string if not found.
func ClientIDFromContext(ctx context.Context) string {
	if clientID, ok := ctx.Value(clientIDKey).(string); ok {
		return clientID
	}
	return ""
}
