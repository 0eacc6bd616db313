package auth

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoRefreshToken is returned when a session cannot be renewed because no refresh token is stored.
var ErrNoRefreshToken = errors.New("no refresh token")

// Refresher exchanges a refresh token for a new token pair.
//
// It returns a *RefreshError when the token endpoint rejects the exchange.
// Any other error (eg. connection problems) is returned directly.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// RefresherFunc is an adapter to allow the use of ordinary functions as a Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

// Refresh implements Refresher.
func (fn RefresherFunc) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return fn(ctx, refreshToken)
}

// RefreshError describes a failed token refresh.
type RefreshError struct {
	// StatusCode is the HTTP status returned by the refresh endpoint (0 if no response was received).
	StatusCode int

	Err error
}

func (e *RefreshError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("token refresh failed: %v", e.Err)
	}

	return fmt.Sprintf("token refresh failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
