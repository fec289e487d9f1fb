package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/wordweave/wordweave/internal/models"
	"github.com/wordweave/wordweave/pkg/logger"
)

// VerificationTokenRepository defines the interface for one-time token operations
type VerificationTokenRepository interface {
	Create(ctx context.Context, principalID, token string, purpose models.TokenPurpose, expiresAt time.Time) (*models.VerificationToken, error)
	GetByToken(ctx context.Context, token string) (*models.VerificationToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByPrincipalAndPurpose(ctx context.Context, principalID string, purpose models.TokenPurpose) error
	DeleteAllByPrincipal(ctx context.Context, principalID string) error
}

// VerificationTokenService owns the lifecycle of one-time mailbox-proof codes:
// issue, consume exactly once, discard. The storage delete is the consumption
// gate, so double consume loses cleanly even across instances.
type VerificationTokenService struct {
	tokenRepo     VerificationTokenRepository
	principalRepo PrincipalRepository
	emailService  EmailService
	logger        *slog.Logger
	codeLength    int
	tokenTTL      time.Duration
}

// NewVerificationTokenService creates a new VerificationTokenService
func NewVerificationTokenService(
	tokenRepo VerificationTokenRepository,
	principalRepo PrincipalRepository,
	emailService EmailService,
	logger *slog.Logger,
	codeLength int,
	tokenTTL time.Duration,
) *VerificationTokenService {
	return &VerificationTokenService{
		tokenRepo:     tokenRepo,
		principalRepo: principalRepo,
		emailService:  emailService,
		logger:        logger,
		codeLength:    codeLength,
		tokenTTL:      tokenTTL,
	}
}

// Issue creates a fresh one-time code for the (principal, purpose) pair and
// emails it to the principal's address. Any prior code for the same pair is
// deleted first, so at most one is ever live.
func (s *VerificationTokenService) Issue(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
	if err := s.tokenRepo.DeleteByPrincipalAndPurpose(ctx, principal.ID, purpose); err != nil {
		s.logger.Error("failed to clear prior verification token",
			slog.String("principal_id", principal.ID),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	code, err := generateCode(s.codeLength)
	if err != nil {
		s.logger.Error("failed to generate verification code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.tokenTTL)

	if _, err := s.tokenRepo.Create(ctx, principal.ID, code, purpose, expiresAt); err != nil {
		s.logger.Error("failed to create verification token",
			slog.String("principal_id", principal.ID),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.sendForPurpose(ctx, principal.Email, code, purpose, expiresAt); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("verification token issued",
		slog.String("principal_id", principal.ID),
		slog.String("purpose", string(purpose)),
		slog.String("email", logger.SanitizedEmail(principal.Email)))

	return nil
}

// Consume claims a one-time code and returns its owning principal. The claim
// is the storage delete: whichever request deletes the row wins, every other
// concurrent consume of the same code fails with ErrInvalidToken.
func (s *VerificationTokenService) Consume(ctx context.Context, code string, expectedPurpose models.TokenPurpose) (*models.Principal, error) {
	if code == "" {
		return nil, models.ErrInvalidToken
	}

	token, err := s.tokenRepo.GetByToken(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("verification token not found",
				slog.String("purpose", string(expectedPurpose)))
			return nil, models.ErrInvalidToken
		}
		s.logger.Error("failed to look up verification token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if token.IsExpired() {
		// Expired tokens are garbage, never reusable.
		if err := s.tokenRepo.Delete(ctx, token.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to delete expired verification token",
				slog.String("token_id", token.ID),
				slog.Any("error", err))
		}
		s.logger.Info("verification token expired",
			slog.String("token_id", token.ID),
			slog.Time("expires_at", token.ExpiresAt))
		return nil, models.ErrTokenExpired
	}

	if token.Purpose != expectedPurpose {
		s.logger.Warn("verification token purpose mismatch",
			slog.String("token_id", token.ID),
			slog.String("expected", string(expectedPurpose)),
			slog.String("actual", string(token.Purpose)))
		return nil, models.ErrTokenPurposeMismatch
	}

	if err := s.tokenRepo.Delete(ctx, token.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Lost the race to a concurrent consume.
			s.logger.Warn("verification token already consumed",
				slog.String("token_id", token.ID))
			return nil, models.ErrInvalidToken
		}
		s.logger.Error("failed to consume verification token",
			slog.String("token_id", token.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	principal, err := s.principalRepo.GetByID(ctx, token.PrincipalID)
	if err != nil {
		s.logger.Error("failed to load principal for consumed token",
			slog.String("principal_id", token.PrincipalID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("verification token consumed",
		slog.String("principal_id", principal.ID),
		slog.String("purpose", string(expectedPurpose)))

	return principal, nil
}

// Discard cancels a pending request by deleting the (principal, purpose)
// token. An email-change discard also removes the pending principal that was
// holding the candidate address.
func (s *VerificationTokenService) Discard(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
	if err := s.tokenRepo.DeleteByPrincipalAndPurpose(ctx, principal.ID, purpose); err != nil {
		s.logger.Error("failed to discard verification token",
			slog.String("principal_id", principal.ID),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if purpose == models.PurposeEmailChange {
		if err := s.principalRepo.Delete(ctx, principal.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to delete pending principal",
				slog.String("principal_id", principal.ID),
				slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	s.logger.Info("verification token discarded",
		slog.String("principal_id", principal.ID),
		slog.String("purpose", string(purpose)))

	return nil
}

func (s *VerificationTokenService) sendForPurpose(ctx context.Context, email, code string, purpose models.TokenPurpose, expiresAt time.Time) error {
	switch purpose {
	case models.PurposeEmailVerification:
		return s.emailService.SendVerificationEmail(ctx, email, code, expiresAt)
	case models.PurposeEmailChange:
		return s.emailService.SendEmailChangeEmail(ctx, email, code, expiresAt)
	case models.PurposePasswordReset:
		return s.emailService.SendPasswordResetEmail(ctx, email, code, expiresAt)
	default:
		return fmt.Errorf("unknown token purpose: %s", purpose)
	}
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// generateCode produces a fixed-length alphanumeric one-time code.
func generateCode(length int) (string, error) {
	code := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))

	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}

	return string(code), nil
}
