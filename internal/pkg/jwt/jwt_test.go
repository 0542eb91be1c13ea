package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func TestGenerateAndValidateAccessToken(t *testing.T) {
	token, err := GenerateAccessToken(7, 1, "alice", "ADMIN", testSecret, 15)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateAccessToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(1), claims.TenantID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, "loyaltyhub", claims.Issuer)
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(7, 1, "alice", "ADMIN", testSecret, 15)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, "another-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateAccessTokenExpired(t *testing.T) {
	token, err := GenerateAccessToken(7, 1, "alice", "ADMIN", testSecret, -1)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, testSecret)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateAccessTokenGarbage(t *testing.T) {
	_, err := ValidateAccessToken("not.a.token", testSecret)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
