package jwt

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
)

// ErrNoExpiry is returned by Inspector.ExpiresWithin for tokens without an "exp" claim.
var ErrNoExpiry = errors.New("token has no expiry")

type claims struct {
	jwt.RegisteredClaims

	UserID    json.RawMessage `json:"user_id,omitempty"`
	TokenType string          `json:"token_type,omitempty"`
}

// Claims are the parts of an access token a client cares about.
type Claims struct {
	Subject   string
	UserID    string
	TokenType string
	ID        string

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspector reads access tokens issued by the API.
//
// Signatures are not verified: the client cannot (and does not need to) trust
// the token, it only uses the claims to show session details and to tell an
// expired session from a live one.
type Inspector struct {
	parser *jwt.Parser
	clock  clockwork.Clock
}

// Option configures an Inspector.
type Option interface {
	apply(i *Inspector)
}

type optionFunc func(i *Inspector)

func (fn optionFunc) apply(i *Inspector) {
	fn(i)
}

// WithClock sets the clock used for expiry checks.
func WithClock(clock clockwork.Clock) Option {
	return optionFunc(func(i *Inspector) {
		i.clock = clock
	})
}

// NewInspector returns a new Inspector.
func NewInspector(opts ...Option) Inspector {
	i := Inspector{
		parser: jwt.NewParser(),
	}

	for _, opt := range opts {
		opt.apply(&i)
	}

	if i.clock == nil {
		i.clock = clockwork.NewRealClock()
	}

	return i
}

// Inspect decodes the claims of token.
func (i Inspector) Inspect(token string) (Claims, error) {
	var c claims

	if _, _, err := i.parser.ParseUnverified(token, &c); err != nil {
		return Claims{}, err
	}

	result := Claims{
		Subject:   c.Subject,
		UserID:    strings.Trim(string(c.UserID), `"`),
		TokenType: c.TokenType,
		ID:        c.ID,
	}

	if c.IssuedAt != nil {
		result.IssuedAt = c.IssuedAt.Time
	}

	if c.ExpiresAt != nil {
		result.ExpiresAt = c.ExpiresAt.Time
	}

	return result, nil
}

// ExpiresWithin reports whether token expires within d from now.
func (i Inspector) ExpiresWithin(token string, d time.Duration) (bool, error) {
	remaining, err := i.Remaining(token)
	if err != nil {
		return false, err
	}

	return remaining <= d, nil
}

// Remaining returns how long token is still valid for.
// The result is negative for expired tokens.
func (i Inspector) Remaining(token string) (time.Duration, error) {
	c, err := i.Inspect(token)
	if err != nil {
		return 0, err
	}

	if c.ExpiresAt.IsZero() {
		return 0, ErrNoExpiry
	}

	return c.ExpiresAt.Sub(i.clock.Now()), nil
}
