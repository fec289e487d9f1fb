package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/wordweave/wordweave/internal/models"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateEmail(ctx context.Context, id, email string, verified bool) (*models.User, error)
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	UpdateUsername(ctx context.Context, id, username string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// UserService handles profile reads and updates.
type UserService struct {
	userRepo      UserRepository
	principalRepo PrincipalRepository
	logger        *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo UserRepository, principalRepo PrincipalRepository, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo:      userRepo,
		principalRepo: principalRepo,
		logger:        logger,
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetByPrincipal resolves the account behind an authenticated principal.
// Session claims carry the principal id, not the user id.
func (s *UserService) GetByPrincipal(ctx context.Context, principalID string) (*models.User, error) {
	principal, err := s.principalRepo.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, principal.UserID)
}

// UpdateUsername sets a new username on the profile.
func (s *UserService) UpdateUsername(ctx context.Context, id, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.ErrBadRequest
	}

	user, err := s.userRepo.UpdateUsername(ctx, id, username)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to update username",
			slog.String("user_id", id),
			slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("username updated", slog.String("user_id", id))
	return user, nil
}

// ListAuthMethods returns the providers linked to the account, canonical
// principals only (the pending email-change principal is omitted).
func (s *UserService) ListAuthMethods(ctx context.Context, userID string) ([]models.ProviderKind, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	principals, err := s.principalRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	providers := make([]models.ProviderKind, 0, len(principals))
	for _, p := range principals {
		if p.IsLocal() && p.Email != user.Email {
			continue
		}
		providers = append(providers, p.Provider)
	}

	return providers, nil
}

// IsEmailAvailable reports whether no account currently uses the email.
func (s *UserService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return true, nil
		}
		return false, err
	}

	return false, nil
}

// normalizeEmail canonicalizes an address for storage and lookup.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
