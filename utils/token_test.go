package authUtils

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("65f0c0ffee", "secret", time.Hour)
	require.NoError(t, err)

	userID, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "65f0c0ffee", userID)
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := GenerateToken("u1", "secret", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("u1", "secret", -time.Minute)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"user_id": "u1",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]struct{ token, secret string }{
		"wrong secret":  {valid, "other"},
		"expired":       {expired, "secret"},
		"missing claim": {noUser, "secret"},
		"wrong alg":     {wrongAlg, "secret"},
		"garbage":       {"not.a.token", "secret"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tc.token, tc.secret)
			assert.Error(t, err)
		})
	}
}

func TestGenerateTokenNeedsSecret(t *testing.T) {
	_, err := GenerateToken("u1", "", time.Hour)
	assert.Error(t, err)
}
