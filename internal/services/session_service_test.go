package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordweave/wordweave/internal/models"
)

func refreshClaims(principalID, tokenID string) *models.AccessClaims {
	return &models.AccessClaims{
		IsLive: false,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:      tokenID,
			Subject: principalID,
		},
	}
}

func TestSessionService_IssueLiveSession(t *testing.T) {
	var persisted *models.RefreshToken
	refreshRepo := &MockRefreshTokenRepository{
		CreateFunc: func(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
			persisted = token
			return token, nil
		},
	}

	var mintedLive bool
	var refreshJTI string
	codec := &MockTokenCodec{
		MintFunc: func(principalID string, ttl time.Duration, isLive bool) (string, error) {
			mintedLive = isLive
			return "access-token", nil
		},
		MintWithIDFunc: func(principalID, tokenID string, ttl time.Duration, isLive bool) (string, error) {
			refreshJTI = tokenID
			return "refresh-token", nil
		},
	}

	svc := NewSessionService(codec, refreshRepo, testLogger(), 15*time.Minute, 14*24*time.Hour)

	pair, err := svc.IssueLiveSession(context.Background(), &models.Principal{ID: "p1", UserID: "u1"})

	require.NoError(t, err)
	assert.Equal(t, "access-token", pair.AccessToken)
	assert.Equal(t, "refresh-token", pair.RefreshToken)
	assert.True(t, mintedLive, "login access token must be live")

	require.NotNil(t, persisted)
	assert.Equal(t, "u1", persisted.UserID)
	assert.Equal(t, persisted.ID, refreshJTI, "refresh jti must match the persisted row id")
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), persisted.ExpiresAt, time.Minute)
}

func TestSessionService_Refresh_MintsNonLiveToken(t *testing.T) {
	refreshRepo := &MockRefreshTokenRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.RefreshToken, error) {
			return &models.RefreshToken{ID: id, UserID: "u1"}, nil
		},
	}

	var mintedLive *bool
	codec := &MockTokenCodec{
		VerifyFunc: func(tokenString string) (*models.AccessClaims, error) {
			return refreshClaims("p1", "rt1"), nil
		},
		MintFunc: func(principalID string, ttl time.Duration, isLive bool) (string, error) {
			mintedLive = &isLive
			return "fresh-access", nil
		},
	}

	svc := NewSessionService(codec, refreshRepo, testLogger(), 15*time.Minute, 14*24*time.Hour)

	accessToken, err := svc.Refresh(context.Background(), "refresh-token")

	require.NoError(t, err)
	assert.Equal(t, "fresh-access", accessToken)
	require.NotNil(t, mintedLive)
	assert.False(t, *mintedLive, "refreshed access tokens never carry recent-login privilege")
}

func TestSessionService_Refresh_RevokedRow(t *testing.T) {
	codec := &MockTokenCodec{
		VerifyFunc: func(tokenString string) (*models.AccessClaims, error) {
			return refreshClaims("p1", "rt-gone"), nil
		},
	}

	svc := NewSessionService(codec, &MockRefreshTokenRepository{}, testLogger(), 15*time.Minute, 14*24*time.Hour)

	_, err := svc.Refresh(context.Background(), "refresh-token")

	assert.ErrorIs(t, err, models.ErrRefreshRevoked)
}

func TestSessionService_Refresh_InvalidToken(t *testing.T) {
	codec := &MockTokenCodec{
		VerifyFunc: func(tokenString string) (*models.AccessClaims, error) {
			return nil, models.ErrTokenExpired
		},
	}

	svc := NewSessionService(codec, &MockRefreshTokenRepository{}, testLogger(), 15*time.Minute, 14*24*time.Hour)

	_, err := svc.Refresh(context.Background(), "stale")

	assert.ErrorIs(t, err, models.ErrTokenExpired)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestSessionService_Logout_DeletesRow(t *testing.T) {
	deleted := ""
	refreshRepo := &MockRefreshTokenRepository{
		DeleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}

	codec := &MockTokenCodec{
		VerifyFunc: func(tokenString string) (*models.AccessClaims, error) {
			return refreshClaims("p1", "rt1"), nil
		},
	}

	svc := NewSessionService(codec, refreshRepo, testLogger(), 15*time.Minute, 14*24*time.Hour)

	err := svc.Logout(context.Background(), "refresh-token")

	require.NoError(t, err)
	assert.Equal(t, "rt1", deleted)
}

func TestSessionService_Logout_InvalidTokenIsNoop(t *testing.T) {
	deleted := false
	refreshRepo := &MockRefreshTokenRepository{
		DeleteFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}

	svc := NewSessionService(&MockTokenCodec{}, refreshRepo, testLogger(), 15*time.Minute, 14*24*time.Hour)

	err := svc.Logout(context.Background(), "garbage")

	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionService_Logout_AlreadyRevoked(t *testing.T) {
	refreshRepo := &MockRefreshTokenRepository{
		DeleteFunc: func(ctx context.Context, id string) error {
			return models.ErrNotFound
		},
	}

	codec := &MockTokenCodec{
		VerifyFunc: func(tokenString string) (*models.AccessClaims, error) {
			return refreshClaims("p1", "rt1"), nil
		},
	}

	svc := NewSessionService(codec, refreshRepo, testLogger(), 15*time.Minute, 14*24*time.Hour)

	assert.NoError(t, svc.Logout(context.Background(), "refresh-token"))
}

func TestSessionService_RevokeAllForUser(t *testing.T) {
	revoked := ""
	refreshRepo := &MockRefreshTokenRepository{
		DeleteAllByUserFunc: func(ctx context.Context, userID string) error {
			revoked = userID
			return nil
		},
	}

	svc := NewSessionService(&MockTokenCodec{}, refreshRepo, testLogger(), 15*time.Minute, 14*24*time.Hour)

	require.NoError(t, svc.RevokeAllForUser(context.Background(), "u1"))
	assert.Equal(t, "u1", revoked)
}
