package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier-api/internal/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:        "0123456789abcdef0123456789abcdef",
		APIKeyHash:       "$2a$10$abcdefghijklmnopqrstuv",
		TokenLifetimeMin: 15,
	}
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	t.Run("rejects short secret", func(t *testing.T) {
		t.Parallel()

		cfg := testAuthConfig()
		cfg.JWTSecret = "short"
		_, err := NewJWTService(cfg)
		assert.Error(t, err)
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService(testAuthConfig())
	require.NoError(t, err)

	token, err := svc.GenerateToken(context.Background(), "atelier-client")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, "atelier-client", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, time.Minute)
}

func TestJWTService_ValidateToken(t *testing.T) {
	t.Parallel()

	t.Run("rejects malformed token", func(t *testing.T) {
		t.Parallel()

		svc, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		_, err = svc.ValidateToken(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects token signed with another key", func(t *testing.T) {
		t.Parallel()

		svcA, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		otherCfg := testAuthConfig()
		otherCfg.JWTSecret = "ffffffffffffffffffffffffffffffff"
		svcB, err := NewJWTService(otherCfg)
		require.NoError(t, err)

		token, err := svcB.GenerateToken(context.Background(), "atelier-client")
		require.NoError(t, err)

		_, err = svcA.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		t.Parallel()

		svc, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		impl := svc.(*hmacJWTService)
		issuedAt := time.Now().Add(-time.Hour)
		impl.timeFunc = func() time.Time { return issuedAt }

		token, err := svc.GenerateToken(context.Background(), "atelier-client")
		require.NoError(t, err)

		impl.timeFunc = time.Now
		_, err = svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestBcryptVerifier(t *testing.T) {
	t.Parallel()

	// bcrypt hash of "atelier-test-key" at cost 10.
	const hash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

	verifier := NewBcryptVerifier()

	t.Run("wrong key is rejected", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, verifier.Verify(hash, "wrong-key"), ErrInvalidAPIKey)
	})

	t.Run("garbage hash is rejected", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, verifier.Verify("not-a-hash", "anything"), ErrInvalidAPIKey)
	})
}
