package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	return token
}

func TestInspector_Inspect(t *testing.T) {
	now := time.UnixMicro(1257894000000000)

	t.Run("OK", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{
			"sub":        "user",
			"user_id":    42,
			"token_type": "access",
			"jti":        "vb86v87g87g87g87bb897vcw2367fv723vc8236",
			"iat":        now.Unix(),
			"exp":        now.Add(5 * time.Minute).Unix(),
		})

		claims, err := NewInspector().Inspect(token)
		require.NoError(t, err)

		expected := Claims{
			Subject:   "user",
			UserID:    "42",
			TokenType: "access",
			ID:        "vb86v87g87g87g87bb897vcw2367fv723vc8236",
			IssuedAt:  time.Unix(now.Unix(), 0),
			ExpiresAt: time.Unix(now.Add(5*time.Minute).Unix(), 0),
		}

		assert.Equal(t, expected.Subject, claims.Subject)
		assert.Equal(t, expected.UserID, claims.UserID)
		assert.Equal(t, expected.TokenType, claims.TokenType)
		assert.Equal(t, expected.ID, claims.ID)
		assert.True(t, expected.IssuedAt.Equal(claims.IssuedAt))
		assert.True(t, expected.ExpiresAt.Equal(claims.ExpiresAt))
	})

	t.Run("StringUserID", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"user_id": "abc"})

		claims, err := NewInspector().Inspect(token)
		require.NoError(t, err)

		assert.Equal(t, "abc", claims.UserID)
	})

	t.Run("ExpiredTokensAreReadable", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"sub": "user", "exp": now.Add(-time.Hour).Unix()})

		claims, err := NewInspector().Inspect(token)
		require.NoError(t, err)

		assert.Equal(t, "user", claims.Subject)
	})

	t.Run("Error", func(t *testing.T) {
		testCases := []string{
			"",
			"not-a-token",
			"a.b.c",
		}

		for _, testCase := range testCases {
			testCase := testCase

			t.Run("", func(t *testing.T) {
				_, err := NewInspector().Inspect(testCase)
				require.Error(t, err)
			})
		}
	})
}

func TestInspector_ExpiresWithin(t *testing.T) {
	now := time.UnixMicro(1257894000000000)
	clock := clockwork.NewFakeClockAt(now)

	inspector := NewInspector(WithClock(clock))

	token := signedToken(t, jwt.MapClaims{"exp": now.Add(5 * time.Minute).Unix()})

	expiring, err := inspector.ExpiresWithin(token, time.Minute)
	require.NoError(t, err)
	assert.False(t, expiring)

	clock.Advance(4*time.Minute + 30*time.Second)

	expiring, err = inspector.ExpiresWithin(token, time.Minute)
	require.NoError(t, err)
	assert.True(t, expiring)

	clock.Advance(time.Minute)

	remaining, err := inspector.Remaining(token)
	require.NoError(t, err)
	assert.Negative(t, remaining)

	_, err = inspector.Remaining(signedToken(t, jwt.MapClaims{"sub": "user"}))
	assert.ErrorIs(t, err, ErrNoExpiry)
}
