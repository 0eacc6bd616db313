package auth

import (
	"errors"
)

// ErrAuthenticationFailed is returned when the token endpoint rejects a set of credentials.
//
// This error should only be returned if credential verification fails.
// Any other error (eg. connection problems) should be returned directly.
var ErrAuthenticationFailed = errors.New("authentication failed")
