package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/wordweave/wordweave/internal/models"
	"github.com/wordweave/wordweave/pkg/logger"
)

// testLogger returns a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testAuditLogger returns an audit logger that discards output.
func testAuditLogger() *logger.AuditLogger {
	return logger.NewAuditLogger(testLogger())
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc          func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc       func(ctx context.Context, email string) (*models.User, error)
	CreateFunc           func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateEmailFunc      func(ctx context.Context, id, email string, verified bool) (*models.User, error)
	SetEmailVerifiedFunc func(ctx context.Context, id string, verified bool) error
	UpdateUsernameFunc   func(ctx context.Context, id, username string) (*models.User, error)
	DeleteFunc           func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateEmail(ctx context.Context, id, email string, verified bool) (*models.User, error) {
	if m.UpdateEmailFunc != nil {
		return m.UpdateEmailFunc(ctx, id, email, verified)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	if m.SetEmailVerifiedFunc != nil {
		return m.SetEmailVerifiedFunc(ctx, id, verified)
	}
	return nil
}

func (m *MockUserRepository) UpdateUsername(ctx context.Context, id, username string) (*models.User, error) {
	if m.UpdateUsernameFunc != nil {
		return m.UpdateUsernameFunc(ctx, id, username)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockPrincipalRepository implements PrincipalRepository for testing
type MockPrincipalRepository struct {
	GetByIDFunc          func(ctx context.Context, id string) (*models.Principal, error)
	ListByUserFunc       func(ctx context.Context, userID string) ([]*models.Principal, error)
	GetByProviderIDFunc  func(ctx context.Context, provider models.ProviderKind, providerUserID string) (*models.Principal, error)
	GetLocalByEmailFunc  func(ctx context.Context, email string) (*models.Principal, error)
	CreateFunc           func(ctx context.Context, p *models.Principal) (*models.Principal, error)
	UpdatePasswordFunc   func(ctx context.Context, id, passwordHash string) error
	SetEmailVerifiedFunc func(ctx context.Context, id string, verified bool) error
	DeleteFunc           func(ctx context.Context, id string) error
	DeleteAllByUserFunc  func(ctx context.Context, userID string) error
}

func (m *MockPrincipalRepository) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockPrincipalRepository) ListByUser(ctx context.Context, userID string) ([]*models.Principal, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []*models.Principal{}, nil
}

func (m *MockPrincipalRepository) GetByProviderID(ctx context.Context, provider models.ProviderKind, providerUserID string) (*models.Principal, error) {
	if m.GetByProviderIDFunc != nil {
		return m.GetByProviderIDFunc(ctx, provider, providerUserID)
	}
	return nil, models.ErrNotFound
}

func (m *MockPrincipalRepository) GetLocalByEmail(ctx context.Context, email string) (*models.Principal, error) {
	if m.GetLocalByEmailFunc != nil {
		return m.GetLocalByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockPrincipalRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	return nil, models.ErrInternalServer
}

func (m *MockPrincipalRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockPrincipalRepository) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	if m.SetEmailVerifiedFunc != nil {
		return m.SetEmailVerifiedFunc(ctx, id, verified)
	}
	return nil
}

func (m *MockPrincipalRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockPrincipalRepository) DeleteAllByUser(ctx context.Context, userID string) error {
	if m.DeleteAllByUserFunc != nil {
		return m.DeleteAllByUserFunc(ctx, userID)
	}
	return nil
}

// MockVerificationTokenRepository implements VerificationTokenRepository for testing
type MockVerificationTokenRepository struct {
	CreateFunc                      func(ctx context.Context, principalID, token string, purpose models.TokenPurpose, expiresAt time.Time) (*models.VerificationToken, error)
	GetByTokenFunc                  func(ctx context.Context, token string) (*models.VerificationToken, error)
	DeleteFunc                      func(ctx context.Context, id string) error
	DeleteByPrincipalAndPurposeFunc func(ctx context.Context, principalID string, purpose models.TokenPurpose) error
	DeleteAllByPrincipalFunc        func(ctx context.Context, principalID string) error
}

func (m *MockVerificationTokenRepository) Create(ctx context.Context, principalID, token string, purpose models.TokenPurpose, expiresAt time.Time) (*models.VerificationToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, principalID, token, purpose, expiresAt)
	}
	return &models.VerificationToken{
		ID:          "token-id",
		PrincipalID: principalID,
		Token:       token,
		Purpose:     purpose,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *MockVerificationTokenRepository) GetByToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockVerificationTokenRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockVerificationTokenRepository) DeleteByPrincipalAndPurpose(ctx context.Context, principalID string, purpose models.TokenPurpose) error {
	if m.DeleteByPrincipalAndPurposeFunc != nil {
		return m.DeleteByPrincipalAndPurposeFunc(ctx, principalID, purpose)
	}
	return nil
}

func (m *MockVerificationTokenRepository) DeleteAllByPrincipal(ctx context.Context, principalID string) error {
	if m.DeleteAllByPrincipalFunc != nil {
		return m.DeleteAllByPrincipalFunc(ctx, principalID)
	}
	return nil
}

// MockRefreshTokenRepository implements RefreshTokenRepository for testing
type MockRefreshTokenRepository struct {
	CreateFunc          func(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)
	GetByIDFunc         func(ctx context.Context, id string) (*models.RefreshToken, error)
	DeleteFunc          func(ctx context.Context, id string) error
	DeleteAllByUserFunc func(ctx context.Context, userID string) error
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	return token, nil
}

func (m *MockRefreshTokenRepository) GetByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockRefreshTokenRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockRefreshTokenRepository) DeleteAllByUser(ctx context.Context, userID string) error {
	if m.DeleteAllByUserFunc != nil {
		return m.DeleteAllByUserFunc(ctx, userID)
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc func(ctx context.Context, email, code string, expiresAt time.Time) error
	SendEmailChangeEmailFunc  func(ctx context.Context, email, code string, expiresAt time.Time) error
	SendPasswordResetFunc     func(ctx context.Context, email, code string, expiresAt time.Time) error
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, code, expiresAt)
	}
	return nil
}

func (m *MockEmailService) SendEmailChangeEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendEmailChangeEmailFunc != nil {
		return m.SendEmailChangeEmailFunc(ctx, email, code, expiresAt)
	}
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, email, code, expiresAt)
	}
	return nil
}

// MockTokenCodec implements TokenCodec for testing
type MockTokenCodec struct {
	MintFunc       func(principalID string, ttl time.Duration, isLive bool) (string, error)
	MintWithIDFunc func(principalID, tokenID string, ttl time.Duration, isLive bool) (string, error)
	VerifyFunc     func(tokenString string) (*models.AccessClaims, error)
}

func (m *MockTokenCodec) Mint(principalID string, ttl time.Duration, isLive bool) (string, error) {
	if m.MintFunc != nil {
		return m.MintFunc(principalID, ttl, isLive)
	}
	return "mock-token", nil
}

func (m *MockTokenCodec) MintWithID(principalID, tokenID string, ttl time.Duration, isLive bool) (string, error) {
	if m.MintWithIDFunc != nil {
		return m.MintWithIDFunc(principalID, tokenID, ttl, isLive)
	}
	return "mock-refresh-token", nil
}

func (m *MockTokenCodec) Verify(tokenString string) (*models.AccessClaims, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(tokenString)
	}
	return nil, models.ErrInvalidToken
}

// MockTokenStore implements TokenStore for testing
type MockTokenStore struct {
	IssueFunc   func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error
	ConsumeFunc func(ctx context.Context, code string, expectedPurpose models.TokenPurpose) (*models.Principal, error)
	DiscardFunc func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error
}

func (m *MockTokenStore) Issue(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, principal, purpose)
	}
	return nil
}

func (m *MockTokenStore) Consume(ctx context.Context, code string, expectedPurpose models.TokenPurpose) (*models.Principal, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, code, expectedPurpose)
	}
	return nil, models.ErrInvalidToken
}

func (m *MockTokenStore) Discard(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
	if m.DiscardFunc != nil {
		return m.DiscardFunc(ctx, principal, purpose)
	}
	return nil
}

// MockSessionManager implements SessionManager for testing
type MockSessionManager struct {
	IssueLiveSessionFunc func(ctx context.Context, principal *models.Principal) (*models.TokenPair, error)
	RevokeAllForUserFunc func(ctx context.Context, userID string) error
}

func (m *MockSessionManager) IssueLiveSession(ctx context.Context, principal *models.Principal) (*models.TokenPair, error) {
	if m.IssueLiveSessionFunc != nil {
		return m.IssueLiveSessionFunc(ctx, principal)
	}
	return &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *MockSessionManager) RevokeAllForUser(ctx context.Context, userID string) error {
	if m.RevokeAllForUserFunc != nil {
		return m.RevokeAllForUserFunc(ctx, userID)
	}
	return nil
}

// MockPrincipalManager implements PrincipalManager for testing
type MockPrincipalManager struct {
	LinkLocalFunc        func(ctx context.Context, user *models.User, email, password string) (*models.Principal, error)
	LinkProviderFunc     func(ctx context.Context, user *models.User, provider models.ProviderKind, providerUserID, email string, emailVerified bool) (*models.Principal, error)
	UnlinkFunc           func(ctx context.Context, user *models.User, provider models.ProviderKind, sessionPrincipalID string) (bool, error)
	FindLocalFunc        func(ctx context.Context, user *models.User) (*models.Principal, error)
	FindPendingLocalFunc func(ctx context.Context, user *models.User) (*models.Principal, error)
}

func (m *MockPrincipalManager) LinkLocal(ctx context.Context, user *models.User, email, password string) (*models.Principal, error) {
	if m.LinkLocalFunc != nil {
		return m.LinkLocalFunc(ctx, user, email, password)
	}
	return nil, models.ErrInternalServer
}

func (m *MockPrincipalManager) LinkProvider(ctx context.Context, user *models.User, provider models.ProviderKind, providerUserID, email string, emailVerified bool) (*models.Principal, error) {
	if m.LinkProviderFunc != nil {
		return m.LinkProviderFunc(ctx, user, provider, providerUserID, email, emailVerified)
	}
	return nil, models.ErrInternalServer
}

func (m *MockPrincipalManager) Unlink(ctx context.Context, user *models.User, provider models.ProviderKind, sessionPrincipalID string) (bool, error) {
	if m.UnlinkFunc != nil {
		return m.UnlinkFunc(ctx, user, provider, sessionPrincipalID)
	}
	return false, models.ErrNotFound
}

func (m *MockPrincipalManager) FindLocal(ctx context.Context, user *models.User) (*models.Principal, error) {
	if m.FindLocalFunc != nil {
		return m.FindLocalFunc(ctx, user)
	}
	return nil, models.ErrNotFound
}

func (m *MockPrincipalManager) FindPendingLocal(ctx context.Context, user *models.User) (*models.Principal, error) {
	if m.FindPendingLocalFunc != nil {
		return m.FindPendingLocalFunc(ctx, user)
	}
	return nil, models.ErrNotFound
}
