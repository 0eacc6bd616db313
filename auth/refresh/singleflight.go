package refresh

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/socialfeed/feedclient/auth"
)

// SingleFlight collapses concurrent refreshes of the same refresh token into a single call.
//
// Callers that arrive while a refresh is in flight wait for its result instead
// of starting their own; the shared call is forgotten as soon as it completes.
type SingleFlight struct {
	refresher auth.Refresher

	group *singleflight.Group
}

// NewSingleFlight wraps refresher.
func NewSingleFlight(refresher auth.Refresher) SingleFlight {
	return SingleFlight{
		refresher: refresher,
		group:     &singleflight.Group{},
	}
}

// Refresh implements auth.Refresher.
func (s SingleFlight) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	ch := s.group.DoChan(refreshToken, func() (interface{}, error) {
		// The shared call must not be cancelled by the caller that happened to start it.
		return s.refresher.Refresh(context.WithoutCancel(ctx), refreshToken)
	})

	select {
	case <-ctx.Done():
		return auth.TokenPair{}, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return auth.TokenPair{}, result.Err
		}

		return result.Val.(auth.TokenPair), nil
	}
}
