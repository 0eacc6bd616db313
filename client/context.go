package client

import (
	"context"
)

type retriedKey struct{}

// MarkRetried marks requests made with the returned context as already retried.
//
// A marked request that receives an unauthorized response is returned to the
// caller as is: no token refresh is attempted for it.
func MarkRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// IsRetried reports whether ctx carries the retry marker.
func IsRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey{}).(bool)

	return retried
}
