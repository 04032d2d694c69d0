package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	userID := uuid.New()

	signed, err := tokens.Issue(userID, "alice")
	require.NoError(t, err)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Name)
}

func TestTokenWrongSecret(t *testing.T) {
	signed, err := NewTokens("secret-a", time.Hour).Issue(uuid.New(), "alice")
	require.NoError(t, err)

	_, err = NewTokens("secret-b", time.Hour).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	tokens := NewTokens("test-secret", -time.Minute)
	signed, err := tokens.Issue(uuid.New(), "alice")
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	encoded, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.NoError(t, VerifyPassword("hunter2", encoded))
	assert.ErrorIs(t, VerifyPassword("hunter3", encoded), ErrInvalidCredentials)
	assert.ErrorIs(t, VerifyPassword("hunter2", "not-a-hash"), ErrInvalidCredentials)
}

func TestPasswordHashesSalted(t *testing.T) {
	a, err := HashPassword("hunter2")
	require.NoError(t, err)
	b, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
