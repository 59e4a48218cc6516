package jwt_test

import (
	"testing"
	"time"

	"github.com/medstock/medstock-backend/internal/identity/jwt"
	"github.com/medstock/medstock-backend/pkg/config"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(accessExpiry time.Duration) *jwt.Manager {
	return jwt.NewManager(&config.JWTConfig{
		Secret:        "unit-test-secret",
		AccessExpiry:  accessExpiry,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "medstock-test",
	})
}

func testUser() *jwt.UserInfo {
	return &jwt.UserInfo{
		ID:       "user-1",
		Username: "jdoe",
		Name:     "Jane Doe",
		Role:     "doctor",
	}
}

func TestManager_GenerateAndValidate(t *testing.T) {
	manager := testManager(15 * time.Minute)

	pair, err := manager.GenerateTokenPair(testUser())
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.ExpiresAt.After(time.Now()))

	claims, err := manager.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "jdoe", claims.Username)
	assert.Equal(t, "Jane Doe", claims.Name)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, "medstock-test", claims.Issuer)

	refreshClaims, err := manager.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refreshClaims.UserID)
}

func TestManager_ValidateAccessToken_Expired(t *testing.T) {
	manager := testManager(-1 * time.Minute)

	pair, err := manager.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = manager.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenExpired))
}

func TestManager_ValidateAccessToken_WrongSecret(t *testing.T) {
	pair, err := testManager(15 * time.Minute).GenerateTokenPair(testUser())
	require.NoError(t, err)

	other := jwt.NewManager(&config.JWTConfig{
		Secret:        "a-different-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "medstock-test",
	})

	_, err = other.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestManager_ValidateAccessToken_Garbage(t *testing.T) {
	manager := testManager(15 * time.Minute)

	_, err := manager.ValidateAccessToken("not-a-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

// Both tokens of a pair identify the same user.
func TestManager_TokensCarrySubject(t *testing.T) {
	manager := testManager(15 * time.Minute)

	pair, err := manager.GenerateTokenPair(testUser())
	require.NoError(t, err)

	access, err := manager.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	refresh, err := manager.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)

	assert.Equal(t, access.Subject, refresh.Subject)
	assert.Equal(t, access.UserID, refresh.UserID)
}
