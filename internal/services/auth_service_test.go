// internal/services/auth_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/config"
	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/utils"
)

func newAuthService(db *gorm.DB) *AuthService {
	utils.SetJWTSecret("test-secret")
	return NewAuthService(db, &config.Config{
		JWT: config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 24},
	})
}

func TestCreateUserAndLogin(t *testing.T) {
	db := setupTestDB(t)
	service := newAuthService(db)

	user, err := service.CreateUser(&CreateUserRequest{
		Username: "finance01",
		Email:    "finance01@example.com",
		Password: "CorrectHorse9!",
		Role:     models.RoleFinance,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "CorrectHorse9!", user.PasswordHash, "password is never stored in the clear")

	resp, err := service.Login(&LoginRequest{Username: "finance01", Password: "CorrectHorse9!"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 24*3600, resp.ExpiresIn)

	claims, err := utils.ValidateJWT(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "finance01", claims.Username)
	assert.Equal(t, string(models.RoleFinance), claims.Role)
}

func TestLogin_BadCredentials(t *testing.T) {
	db := setupTestDB(t)
	service := newAuthService(db)

	_, err := service.CreateUser(&CreateUserRequest{
		Username: "finance01",
		Email:    "finance01@example.com",
		Password: "CorrectHorse9!",
		Role:     models.RoleFinance,
	})
	require.NoError(t, err)

	_, wrongPassword := service.Login(&LoginRequest{Username: "finance01", Password: "wrong"})
	_, unknownUser := service.Login(&LoginRequest{Username: "nobody", Password: "wrong"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	// A caller cannot tell a bad password from a missing account.
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestCreateUser_InvalidRole(t *testing.T) {
	db := setupTestDB(t)
	service := newAuthService(db)

	_, err := service.CreateUser(&CreateUserRequest{
		Username: "intruder",
		Email:    "intruder@example.com",
		Password: "CorrectHorse9!",
		Role:     "superadmin",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user role")
}

func TestCreateUser_RejectsShortPassword(t *testing.T) {
	db := setupTestDB(t)
	service := newAuthService(db)

	_, err := service.CreateUser(&CreateUserRequest{
		Username: "finance01",
		Email:    "finance01@example.com",
		Password: "short",
		Role:     models.RoleFinance,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
