package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wordweave/wordweave/internal/auth"
	"github.com/wordweave/wordweave/internal/models"
	"github.com/wordweave/wordweave/internal/providers"
)

// testCookieConfig is the cookie configuration used across handler tests.
var testCookieConfig = auth.CookieConfig{
	Secure:      false,
	SameSite:    "lax",
	RefreshPath: "/auth",
}

// withClaims injects access claims into the request context the way the auth
// middleware would.
func withClaims(r *http.Request, claims *models.AccessClaims) *http.Request {
	ctx := context.WithValue(r.Context(), auth.ClaimsContextKey, claims)
	return r.WithContext(ctx)
}

// liveClaims builds claims for a token minted at interactive login.
func liveClaims(principalID string) *models.AccessClaims {
	return &models.AccessClaims{
		IsLive: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
}

// refreshedClaims builds claims for a token minted via refresh.
func refreshedClaims(principalID string) *models.AccessClaims {
	c := liveClaims(principalID)
	c.IsLive = false
	return c
}

// MockAccountWorkflow implements AccountWorkflow for testing
type MockAccountWorkflow struct {
	RegisterFunc           func(ctx context.Context, email, username, password string) (*models.User, error)
	LoginFunc              func(ctx context.Context, email, password string) (*models.TokenPair, error)
	ProviderLoginFunc      func(ctx context.Context, identity *providers.ExternalIdentity) (*models.TokenPair, error)
	VerifyEmailFunc        func(ctx context.Context, code string) error
	ResendVerificationFunc func(ctx context.Context, email string) error
}

func (m *MockAccountWorkflow) Register(ctx context.Context, email, username, password string) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, username, password)
	}
	return &models.User{ID: "u1", Email: email, Username: username}, nil
}

func (m *MockAccountWorkflow) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAccountWorkflow) ProviderLogin(ctx context.Context, identity *providers.ExternalIdentity) (*models.TokenPair, error) {
	if m.ProviderLoginFunc != nil {
		return m.ProviderLoginFunc(ctx, identity)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAccountWorkflow) VerifyEmail(ctx context.Context, code string) error {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, code)
	}
	return models.ErrInvalidToken
}

func (m *MockAccountWorkflow) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc != nil {
		return m.ResendVerificationFunc(ctx, email)
	}
	return nil
}

// MockSessionWorkflow implements SessionWorkflow for testing
type MockSessionWorkflow struct {
	RefreshFunc          func(ctx context.Context, refreshToken string) (string, error)
	LogoutFunc           func(ctx context.Context, refreshToken string) error
	RevokeAllForUserFunc func(ctx context.Context, userID string) error
}

func (m *MockSessionWorkflow) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return "", models.ErrInvalidToken
}

func (m *MockSessionWorkflow) Logout(ctx context.Context, refreshToken string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, refreshToken)
	}
	return nil
}

func (m *MockSessionWorkflow) RevokeAllForUser(ctx context.Context, userID string) error {
	if m.RevokeAllForUserFunc != nil {
		return m.RevokeAllForUserFunc(ctx, userID)
	}
	return nil
}

// MockUserResolver implements UserResolver for testing
type MockUserResolver struct {
	GetByPrincipalFunc func(ctx context.Context, principalID string) (*models.User, error)
}

func (m *MockUserResolver) GetByPrincipal(ctx context.Context, principalID string) (*models.User, error) {
	if m.GetByPrincipalFunc != nil {
		return m.GetByPrincipalFunc(ctx, principalID)
	}
	return &models.User{ID: "u1", Email: "user@example.com"}, nil
}

// MockIdentityVerifier implements providers.IdentityVerifier for testing
type MockIdentityVerifier struct {
	AuthCodeURLFunc func(state string) string
	ExchangeFunc    func(ctx context.Context, code string) (*providers.ExternalIdentity, error)
}

func (m *MockIdentityVerifier) AuthCodeURL(state string) string {
	if m.AuthCodeURLFunc != nil {
		return m.AuthCodeURLFunc(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *MockIdentityVerifier) Exchange(ctx context.Context, code string) (*providers.ExternalIdentity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code)
	}
	return nil, models.ErrUnauthorized
}

// MockAccountMutator implements AccountMutator for testing
type MockAccountMutator struct {
	RequestEmailChangeFunc   func(ctx context.Context, userID, newEmail string) error
	ResendEmailChangeFunc    func(ctx context.Context, userID string) error
	CancelEmailChangeFunc    func(ctx context.Context, userID string) error
	ConfirmEmailChangeFunc   func(ctx context.Context, code string) error
	RequestPasswordResetFunc func(ctx context.Context, email string) error
	ResetPasswordFunc        func(ctx context.Context, code, newPassword string) error
	ChangePasswordFunc       func(ctx context.Context, userID, currentPassword, newPassword string) error
	LinkLocalFunc            func(ctx context.Context, userID, password string) error
	UnlinkFunc               func(ctx context.Context, userID string, provider models.ProviderKind, sessionPrincipalID string) (bool, error)
	DeleteAccountFunc        func(ctx context.Context, userID string) error
}

func (m *MockAccountMutator) RequestEmailChange(ctx context.Context, userID, newEmail string) error {
	if m.RequestEmailChangeFunc != nil {
		return m.RequestEmailChangeFunc(ctx, userID, newEmail)
	}
	return nil
}

func (m *MockAccountMutator) ResendEmailChange(ctx context.Context, userID string) error {
	if m.ResendEmailChangeFunc != nil {
		return m.ResendEmailChangeFunc(ctx, userID)
	}
	return nil
}

func (m *MockAccountMutator) CancelEmailChange(ctx context.Context, userID string) error {
	if m.CancelEmailChangeFunc != nil {
		return m.CancelEmailChangeFunc(ctx, userID)
	}
	return nil
}

func (m *MockAccountMutator) ConfirmEmailChange(ctx context.Context, code string) error {
	if m.ConfirmEmailChangeFunc != nil {
		return m.ConfirmEmailChangeFunc(ctx, code)
	}
	return nil
}

func (m *MockAccountMutator) RequestPasswordReset(ctx context.Context, email string) error {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, email)
	}
	return nil
}

func (m *MockAccountMutator) ResetPassword(ctx context.Context, code, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, code, newPassword)
	}
	return nil
}

func (m *MockAccountMutator) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

func (m *MockAccountMutator) LinkLocal(ctx context.Context, userID, password string) error {
	if m.LinkLocalFunc != nil {
		return m.LinkLocalFunc(ctx, userID, password)
	}
	return nil
}

func (m *MockAccountMutator) Unlink(ctx context.Context, userID string, provider models.ProviderKind, sessionPrincipalID string) (bool, error) {
	if m.UnlinkFunc != nil {
		return m.UnlinkFunc(ctx, userID, provider, sessionPrincipalID)
	}
	return false, nil
}

func (m *MockAccountMutator) DeleteAccount(ctx context.Context, userID string) error {
	if m.DeleteAccountFunc != nil {
		return m.DeleteAccountFunc(ctx, userID)
	}
	return nil
}

// MockProfileService implements ProfileService for testing
type MockProfileService struct {
	GetByPrincipalFunc   func(ctx context.Context, principalID string) (*models.User, error)
	UpdateUsernameFunc   func(ctx context.Context, id, username string) (*models.User, error)
	ListAuthMethodsFunc  func(ctx context.Context, userID string) ([]models.ProviderKind, error)
	IsEmailAvailableFunc func(ctx context.Context, email string) (bool, error)
}

func (m *MockProfileService) GetByPrincipal(ctx context.Context, principalID string) (*models.User, error) {
	if m.GetByPrincipalFunc != nil {
		return m.GetByPrincipalFunc(ctx, principalID)
	}
	return &models.User{ID: "u1", Email: "user@example.com", Username: "user"}, nil
}

func (m *MockProfileService) UpdateUsername(ctx context.Context, id, username string) (*models.User, error) {
	if m.UpdateUsernameFunc != nil {
		return m.UpdateUsernameFunc(ctx, id, username)
	}
	return &models.User{ID: id, Username: username}, nil
}

func (m *MockProfileService) ListAuthMethods(ctx context.Context, userID string) ([]models.ProviderKind, error) {
	if m.ListAuthMethodsFunc != nil {
		return m.ListAuthMethodsFunc(ctx, userID)
	}
	return []models.ProviderKind{models.ProviderLocal}, nil
}

func (m *MockProfileService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	if m.IsEmailAvailableFunc != nil {
		return m.IsEmailAvailableFunc(ctx, email)
	}
	return true, nil
}
