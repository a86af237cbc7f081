// File: internal/auth/jwt_test.go
package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("u-1", "alice", secret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sub, err := ValidateToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", sub)
}

func TestGenerateTokenRequiresUserID(t *testing.T) {
	_, err := GenerateToken("", "alice", secret, time.Hour)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("u-1", "alice", secret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, []byte("other-secret"))
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("u-1", "alice", secret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, secret)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCheckLocal(t *testing.T) {
	valid, err := GenerateToken("u-1", "alice", secret, time.Hour)
	require.NoError(t, err)
	assert.NoError(t, CheckLocal(valid))

	expired, err := GenerateToken("u-1", "alice", secret, -time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, CheckLocal(expired), ErrTokenExpired)

	assert.ErrorIs(t, CheckLocal(""), ErrInvalidToken)
	assert.ErrorIs(t, CheckLocal("not-a-token"), ErrInvalidToken)
}

func TestSubject(t *testing.T) {
	token, err := GenerateToken("u-42", "alice", secret, time.Hour)
	require.NoError(t, err)

	sub, err := Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "u-42", sub)

	_, err = Subject("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
