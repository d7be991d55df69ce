package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soluxe-backend/internal/config"
	"soluxe-backend/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := services.NewJWTService(&config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	})

	token, err := svc.GenerateToken("identity-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "identity-1", claims.IdentityID)
}

func TestJWTRejectsExpired(t *testing.T) {
	svc := services.NewJWTService(&config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: -time.Hour,
	})

	token, err := svc.GenerateToken("identity-1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	issuer := services.NewJWTService(&config.Config{
		JWTSecret: "secret-a",
		JWTExpiry: time.Hour,
	})
	verifier := services.NewJWTService(&config.Config{
		JWTSecret: "secret-b",
		JWTExpiry: time.Hour,
	})

	token, err := issuer.GenerateToken("identity-1")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsGarbage(t *testing.T) {
	svc := services.NewJWTService(&config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	})

	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)

	_, err = svc.ValidateToken("")
	assert.Error(t, err)
}
