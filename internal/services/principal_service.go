package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wordweave/wordweave/internal/models"
	"github.com/wordweave/wordweave/pkg/auth"
)

// PrincipalRepository defines the interface for auth-method operations
type PrincipalRepository interface {
	GetByID(ctx context.Context, id string) (*models.Principal, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Principal, error)
	GetByProviderID(ctx context.Context, provider models.ProviderKind, providerUserID string) (*models.Principal, error)
	GetLocalByEmail(ctx context.Context, email string) (*models.Principal, error)
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	Delete(ctx context.Context, id string) error
	DeleteAllByUser(ctx context.Context, userID string) error
}

// PrincipalService maintains the set of auth methods attached to an account.
// Invariant: a user always keeps at least one principal; the last one is
// never removable.
type PrincipalService struct {
	principalRepo PrincipalRepository
	tokenRepo     VerificationTokenRepository
	logger        *slog.Logger
}

// NewPrincipalService creates a new PrincipalService
func NewPrincipalService(
	principalRepo PrincipalRepository,
	tokenRepo VerificationTokenRepository,
	logger *slog.Logger,
) *PrincipalService {
	return &PrincipalService{
		principalRepo: principalRepo,
		tokenRepo:     tokenRepo,
		logger:        logger,
	}
}

// LinkLocal attaches a local (password) credential to an existing account.
// The email must be the account's canonical address; the credential starts
// unverified until the mailbox is proven.
func (s *PrincipalService) LinkLocal(ctx context.Context, user *models.User, email, password string) (*models.Principal, error) {
	if email != user.Email {
		return nil, models.ErrEmailMismatch
	}

	principals, err := s.principalRepo.ListByUser(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to list principals",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	for _, p := range principals {
		if p.IsLocal() {
			return nil, models.ErrAlreadyLinked
		}
	}

	if err := auth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.principalRepo.Create(ctx, &models.Principal{
		UserID:        user.ID,
		Provider:      models.ProviderLocal,
		PasswordHash:  hash,
		Email:         email,
		EmailVerified: false,
	})
	if err != nil {
		s.logger.Error("failed to create local principal",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("local credential linked", slog.String("user_id", user.ID))

	return created, nil
}

// LinkProvider attaches an external identity to an existing account.
func (s *PrincipalService) LinkProvider(ctx context.Context, user *models.User, provider models.ProviderKind, providerUserID, email string, emailVerified bool) (*models.Principal, error) {
	existing, err := s.principalRepo.GetByProviderID(ctx, provider, providerUserID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up provider principal", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if existing != nil {
		if existing.UserID == user.ID {
			return nil, models.ErrAlreadyLinked
		}
		// Identity belongs to someone else's account.
		return nil, models.ErrConflict
	}

	principals, err := s.principalRepo.ListByUser(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to list principals",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	for _, p := range principals {
		if p.Provider == provider {
			return nil, models.ErrAlreadyLinked
		}
	}

	created, err := s.principalRepo.Create(ctx, &models.Principal{
		UserID:         user.ID,
		Provider:       provider,
		ProviderUserID: providerUserID,
		Email:          email,
		EmailVerified:  emailVerified,
	})
	if err != nil {
		s.logger.Error("failed to create provider principal",
			slog.String("user_id", user.ID),
			slog.String("provider", string(provider)),
			slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("provider linked",
		slog.String("user_id", user.ID),
		slog.String("provider", string(provider)))

	return created, nil
}

// Unlink removes an auth method from the account. The returned bool reports
// whether the removed principal was the one behind the caller's session, so
// the transport layer can drop the session too.
func (s *PrincipalService) Unlink(ctx context.Context, user *models.User, provider models.ProviderKind, sessionPrincipalID string) (bool, error) {
	if !models.KnownProvider(provider) {
		return false, models.ErrBadRequest
	}

	principals, err := s.principalRepo.ListByUser(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to list principals",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	if len(principals) <= 1 {
		return false, models.ErrLastAuthMethod
	}

	var target *models.Principal
	for _, p := range principals {
		if p.Provider != provider {
			continue
		}
		// A pending email-change principal shares the local provider but
		// carries the candidate address; it is not the unlink target.
		if p.IsLocal() && p.Email != user.Email {
			continue
		}
		target = p
		break
	}
	if target == nil {
		return false, models.ErrNotFound
	}

	if err := s.tokenRepo.DeleteAllByPrincipal(ctx, target.ID); err != nil {
		s.logger.Error("failed to delete principal tokens",
			slog.String("principal_id", target.ID),
			slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	if err := s.principalRepo.Delete(ctx, target.ID); err != nil {
		s.logger.Error("failed to delete principal",
			slog.String("principal_id", target.ID),
			slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	s.logger.Info("auth method unlinked",
		slog.String("user_id", user.ID),
		slog.String("provider", string(provider)))

	return target.ID == sessionPrincipalID, nil
}

// FindLocal returns the account's canonical local principal, the one whose
// email matches the user's current address.
func (s *PrincipalService) FindLocal(ctx context.Context, user *models.User) (*models.Principal, error) {
	return s.principalRepo.GetLocalByEmail(ctx, user.Email)
}

// FindPendingLocal returns the pending email-change principal for the user:
// a local principal holding an unverified address different from the
// canonical one. Disjoint from FindLocal by construction.
func (s *PrincipalService) FindPendingLocal(ctx context.Context, user *models.User) (*models.Principal, error) {
	principals, err := s.principalRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	for _, p := range principals {
		if p.IsLocal() && !p.EmailVerified && p.Email != user.Email {
			return p, nil
		}
	}

	return nil, models.ErrNotFound
}

// ListByUser returns the account's linked auth methods.
func (s *PrincipalService) ListByUser(ctx context.Context, userID string) ([]*models.Principal, error) {
	return s.principalRepo.ListByUser(ctx, userID)
}
