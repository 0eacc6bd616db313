package auth

import (
	"context"
)

// Storage keys for the two persisted credentials.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// TokenPair is the credential pair issued by the token endpoints.
//
// Refresh may be empty when the refresh endpoint does not rotate refresh tokens.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// TokenStore persists the access and refresh tokens of a single session.
//
// A missing token is reported as an empty string with a nil error.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)

	SetAccessToken(ctx context.Context, token string) error
	SetRefreshToken(ctx context.Context, token string) error

	DeleteAccessToken(ctx context.Context) error
	DeleteRefreshToken(ctx context.Context) error
}

// SaveTokens persists a freshly issued token pair.
// The refresh token is only replaced when the pair carries one.
func SaveTokens(ctx context.Context, store TokenStore, pair TokenPair) error {
	if err := store.SetAccessToken(ctx, pair.Access); err != nil {
		return err
	}

	if pair.Refresh != "" {
		if err := store.SetRefreshToken(ctx, pair.Refresh); err != nil {
			return err
		}
	}

	return nil
}

// ClearTokens removes both tokens from the store.
func ClearTokens(ctx context.Context, store TokenStore) error {
	if err := store.DeleteAccessToken(ctx); err != nil {
		return err
	}

	return store.DeleteRefreshToken(ctx)
}
