package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordweave/wordweave/internal/models"
)

func TestUserService_UpdateUsername_Success(t *testing.T) {
	userRepo := &MockUserRepository{
		UpdateUsernameFunc: func(ctx context.Context, id, username string) (*models.User, error) {
			return &models.User{ID: id, Username: username}, nil
		},
	}

	svc := NewUserService(userRepo, &MockPrincipalRepository{}, testLogger())

	user, err := svc.UpdateUsername(context.Background(), "u1", "  weaver  ")

	require.NoError(t, err)
	assert.Equal(t, "weaver", user.Username)
}

func TestUserService_UpdateUsername_Blank(t *testing.T) {
	svc := NewUserService(&MockUserRepository{}, &MockPrincipalRepository{}, testLogger())

	_, err := svc.UpdateUsername(context.Background(), "u1", "   ")

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUserService_ListAuthMethods_OmitsPendingPrincipal(t *testing.T) {
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Email: "user@example.com"}, nil
		},
	}
	principalRepo := &MockPrincipalRepository{
		ListByUserFunc: func(ctx context.Context, userID string) ([]*models.Principal, error) {
			return []*models.Principal{
				{ID: "pl", Provider: models.ProviderLocal, Email: "user@example.com"},
				{ID: "pending", Provider: models.ProviderLocal, Email: "new@example.com"},
				{ID: "pg", Provider: models.ProviderGoogle, Email: "user@example.com"},
			}, nil
		},
	}

	svc := NewUserService(userRepo, principalRepo, testLogger())

	methods, err := svc.ListAuthMethods(context.Background(), "u1")

	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ProviderKind{models.ProviderLocal, models.ProviderGoogle}, methods)
}

func TestUserService_IsEmailAvailable(t *testing.T) {
	userRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if email == "taken@example.com" {
				return &models.User{ID: "u1", Email: email}, nil
			}
			return nil, models.ErrNotFound
		},
	}

	svc := NewUserService(userRepo, &MockPrincipalRepository{}, testLogger())

	available, err := svc.IsEmailAvailable(context.Background(), "free@example.com")
	require.NoError(t, err)
	assert.True(t, available)

	available, err = svc.IsEmailAvailable(context.Background(), "Taken@Example.com ")
	require.NoError(t, err)
	assert.False(t, available, "lookup normalizes the address first")
}
