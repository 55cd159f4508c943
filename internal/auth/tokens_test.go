package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndParse(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	signed, exp, err := tokens.Issue(42, "6f1c7c4e-8f0b-4a55-9d43-0f3a7f1e2b11")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "6f1c7c4e-8f0b-4a55-9d43-0f3a7f1e2b11", claims.SessionID)
}

func TestParseRejectsExpired(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	signed, _, err := tokens.Issue(1, "sid")
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, _, err := NewTokens([]byte("another-secret-another-secret"), time.Hour).Issue(1, "sid")
	require.NoError(t, err)

	_, err = NewTokens(testSecret, time.Hour).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsMissingSession(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = NewTokens(testSecret, time.Hour).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "7", ID: "sid", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokens(testSecret, time.Hour).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
