package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinKickass/PackStationCore/internal/config"
)

func TestPasswordHashRoundtrip(t *testing.T) {
	ph := NewPasswordHasher()

	hash, err := ph.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := ph.VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ph.VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	ph := NewPasswordHasher()

	_, err := ph.VerifyPassword("anything", "not-a-hash")
	assert.Error(t, err)
}

func TestJWTRoundtrip(t *testing.T) {
	h := NewJWTHandler("test-secret", time.Minute)

	token, err := h.GenerateAccessToken("operator-1", RoleOperator)
	require.NoError(t, err)

	claims, err := h.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.Username)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.Equal(t, "packstationcore", claims.Issuer)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	h := NewJWTHandler("secret-a", time.Minute)
	other := NewJWTHandler("secret-b", time.Minute)

	token, err := h.GenerateAccessToken("operator-1", RoleOperator)
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	h := NewJWTHandler("test-secret", -time.Minute)

	token, err := h.GenerateAccessToken("operator-1", RoleOperator)
	require.NoError(t, err)

	_, err = h.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestAuthServiceLogin(t *testing.T) {
	ph := NewPasswordHasher()
	hash, err := ph.HashPassword("hunter2")
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "test-secret-for-auth-service-tests")

	svc := NewAuthService(config.AuthConfig{
		AccessTokenTTL:       time.Minute,
		OperatorUser:         "operator",
		OperatorPasswordHash: hash,
	})

	token, err := svc.Login("operator", "hunter2")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Username)
	assert.Equal(t, RoleOperator, claims.Role)

	_, err = svc.Login("operator", "wrong")
	assert.Error(t, err)

	_, err = svc.Login("somebody-else", "hunter2")
	assert.Error(t, err)
}
