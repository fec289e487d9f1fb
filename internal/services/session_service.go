package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wordweave/wordweave/internal/models"
)

// TokenCodec defines the interface for minting and verifying session tokens
type TokenCodec interface {
	Mint(principalID string, ttl time.Duration, isLive bool) (string, error)
	MintWithID(principalID, tokenID string, ttl time.Duration, isLive bool) (string, error)
	Verify(tokenString string) (*models.AccessClaims, error)
}

// RefreshTokenRepository defines the interface for refresh-session records
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)
	GetByID(ctx context.Context, id string) (*models.RefreshToken, error)
	Delete(ctx context.Context, id string) error
	DeleteAllByUser(ctx context.Context, userID string) error
}

// SessionService issues and revokes sessions. Access tokens are stateless;
// the refresh token's durable row is the revocation handle. Refresh tokens
// are not rotated on use; logout and revoke-all delete the rows.
type SessionService struct {
	codec           TokenCodec
	refreshRepo     RefreshTokenRepository
	logger          *slog.Logger
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewSessionService creates a new SessionService
func NewSessionService(
	codec TokenCodec,
	refreshRepo RefreshTokenRepository,
	logger *slog.Logger,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
) *SessionService {
	return &SessionService{
		codec:           codec,
		refreshRepo:     refreshRepo,
		logger:          logger,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// IssueLiveSession mints a live access token and a persisted refresh token
// for a freshly authenticated principal.
func (s *SessionService) IssueLiveSession(ctx context.Context, principal *models.Principal) (*models.TokenPair, error) {
	accessToken, err := s.codec.Mint(principal.ID, s.accessTokenTTL, true)
	if err != nil {
		s.logger.Error("failed to mint access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	record := &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    principal.UserID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTokenTTL),
	}

	if _, err := s.refreshRepo.Create(ctx, record); err != nil {
		s.logger.Error("failed to persist refresh token",
			slog.String("user_id", principal.UserID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.codec.MintWithID(principal.ID, record.ID, s.refreshTokenTTL, false)
	if err != nil {
		s.logger.Error("failed to mint refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("session issued",
		slog.String("user_id", principal.UserID),
		slog.String("principal_id", principal.ID))

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The minted token
// is not live: recent-login-privileged actions require a fresh login. The
// refresh token itself stays valid until expiry or revocation.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return "", err
	}

	// The jti must still map to a durable row; a deleted row means revoked.
	if _, err := s.refreshRepo.GetByID(ctx, claims.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("refresh rejected: token revoked",
				slog.String("token_id", claims.ID))
			return "", models.ErrRefreshRevoked
		}
		s.logger.Error("failed to look up refresh token",
			slog.String("token_id", claims.ID),
			slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	accessToken, err := s.codec.Mint(claims.PrincipalID(), s.accessTokenTTL, false)
	if err != nil {
		s.logger.Error("failed to mint access token", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	return accessToken, nil
}

// Logout revokes the single session behind the given refresh token. An
// already-revoked or invalid token is not an error; the session is gone
// either way.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil
	}

	if err := s.refreshRepo.Delete(ctx, claims.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to delete refresh token",
			slog.String("token_id", claims.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// RevokeAllForUser drops every refresh session the user holds. Used on
// password change, reset, and account deletion.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) error {
	if err := s.refreshRepo.DeleteAllByUser(ctx, userID); err != nil {
		s.logger.Error("failed to revoke user sessions",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("all sessions revoked", slog.String("user_id", userID))
	return nil
}
