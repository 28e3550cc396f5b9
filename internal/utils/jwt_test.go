// internal/utils/jwt_test.go
package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")

	userID := uuid.New()
	token, err := GenerateJWT(userID, "finance01", "finance", 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "finance01", claims.Username)
	assert.Equal(t, "finance", claims.Role)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	SetJWTSecret("test-secret")
	token, err := GenerateJWT(uuid.New(), "finance01", "finance", 1)
	require.NoError(t, err)

	SetJWTSecret("different-secret")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestValidateJWT_Garbage(t *testing.T) {
	SetJWTSecret("test-secret")
	_, err := ValidateJWT("not.a.token")
	assert.Error(t, err)
}
