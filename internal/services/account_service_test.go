package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordweave/wordweave/internal/models"
	"github.com/wordweave/wordweave/internal/providers"
	"github.com/wordweave/wordweave/pkg/auth"
)

type accountServiceMocks struct {
	userRepo      *MockUserRepository
	principalRepo *MockPrincipalRepository
	tokenRepo     *MockVerificationTokenRepository
	principals    *MockPrincipalManager
	tokens        *MockTokenStore
	sessions      *MockSessionManager
}

func newAccountService(m *accountServiceMocks, requireVerifiedEmail bool) *AccountService {
	return NewAccountService(
		m.userRepo, m.principalRepo, m.tokenRepo, m.principals, m.tokens, m.sessions,
		testLogger(), testAuditLogger(), requireVerifiedEmail,
	)
}

func defaultAccountMocks() *accountServiceMocks {
	return &accountServiceMocks{
		userRepo:      &MockUserRepository{},
		principalRepo: &MockPrincipalRepository{},
		tokenRepo:     &MockVerificationTokenRepository{},
		principals:    &MockPrincipalManager{},
		tokens:        &MockTokenStore{},
		sessions:      &MockSessionManager{},
	}
}

func TestAccountService_Register_Success(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		user.ID = "u1"
		return user, nil
	}

	var createdPrincipal *models.Principal
	m.principalRepo.CreateFunc = func(ctx context.Context, p *models.Principal) (*models.Principal, error) {
		p.ID = "p1"
		createdPrincipal = p
		return p, nil
	}

	issuedPurpose := models.TokenPurpose("")
	m.tokens.IssueFunc = func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
		issuedPurpose = purpose
		return nil
	}

	svc := newAccountService(m, true)

	user, err := svc.Register(context.Background(), "New.User@Example.COM ", "newuser", "sturdy-pass1")

	require.NoError(t, err)
	assert.Equal(t, "new.user@example.com", user.Email, "email is normalized before storage")
	assert.False(t, user.EmailVerified)

	require.NotNil(t, createdPrincipal)
	assert.Equal(t, models.ProviderLocal, createdPrincipal.Provider)
	assert.False(t, createdPrincipal.EmailVerified)
	assert.NoError(t, auth.ComparePassword(createdPrincipal.PasswordHash, "sturdy-pass1"))

	assert.Equal(t, models.PurposeEmailVerification, issuedPurpose)
}

func TestAccountService_Register_EmailTaken(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{ID: "existing", Email: email}, nil
	}

	svc := newAccountService(m, true)

	_, err := svc.Register(context.Background(), "taken@example.com", "user", "sturdy-pass1")

	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestAccountService_Register_WeakPassword(t *testing.T) {
	m := defaultAccountMocks()
	svc := newAccountService(m, true)

	_, err := svc.Register(context.Background(), "user@example.com", "user", "short")

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAccountService_Register_RemovesUserWhenPrincipalCreateFails(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		user.ID = "u1"
		return user, nil
	}
	m.principalRepo.CreateFunc = func(ctx context.Context, p *models.Principal) (*models.Principal, error) {
		return nil, models.ErrInternalServer
	}

	deletedUser := ""
	m.userRepo.DeleteFunc = func(ctx context.Context, id string) error {
		deletedUser = id
		return nil
	}

	svc := newAccountService(m, true)

	_, err := svc.Register(context.Background(), "user@example.com", "user", "sturdy-pass1")

	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Equal(t, "u1", deletedUser,
		"user row is rolled back so the address can register again")
}

func TestAccountService_Login_Success(t *testing.T) {
	hash, err := auth.HashPassword("sturdy-pass1")
	require.NoError(t, err)

	m := defaultAccountMocks()
	m.principalRepo.GetLocalByEmailFunc = func(ctx context.Context, email string) (*models.Principal, error) {
		return &models.Principal{ID: "p1", UserID: "u1", Provider: models.ProviderLocal, PasswordHash: hash, Email: email, EmailVerified: true}, nil
	}

	sessionIssued := false
	m.sessions.IssueLiveSessionFunc = func(ctx context.Context, principal *models.Principal) (*models.TokenPair, error) {
		sessionIssued = true
		return &models.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
	}

	svc := newAccountService(m, true)

	pair, err := svc.Login(context.Background(), "user@example.com", "sturdy-pass1")

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.True(t, sessionIssued)
}

func TestAccountService_Login_UnknownEmail(t *testing.T) {
	m := defaultAccountMocks()
	svc := newAccountService(m, true)

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever12")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_Login_WrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("sturdy-pass1")
	require.NoError(t, err)

	m := defaultAccountMocks()
	m.principalRepo.GetLocalByEmailFunc = func(ctx context.Context, email string) (*models.Principal, error) {
		return &models.Principal{ID: "p1", UserID: "u1", PasswordHash: hash, EmailVerified: true}, nil
	}

	svc := newAccountService(m, true)

	_, err = svc.Login(context.Background(), "user@example.com", "wrong-pass1")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_Login_UnverifiedEmail(t *testing.T) {
	hash, err := auth.HashPassword("sturdy-pass1")
	require.NoError(t, err)

	m := defaultAccountMocks()
	m.principalRepo.GetLocalByEmailFunc = func(ctx context.Context, email string) (*models.Principal, error) {
		return &models.Principal{ID: "p1", UserID: "u1", PasswordHash: hash, EmailVerified: false}, nil
	}

	svc := newAccountService(m, true)

	_, err = svc.Login(context.Background(), "user@example.com", "sturdy-pass1")

	assert.ErrorIs(t, err, models.ErrEmailNotVerified)
}

func TestAccountService_Login_UnverifiedAllowedWhenPolicyOff(t *testing.T) {
	hash, err := auth.HashPassword("sturdy-pass1")
	require.NoError(t, err)

	m := defaultAccountMocks()
	m.principalRepo.GetLocalByEmailFunc = func(ctx context.Context, email string) (*models.Principal, error) {
		return &models.Principal{ID: "p1", UserID: "u1", PasswordHash: hash, EmailVerified: false}, nil
	}

	svc := newAccountService(m, false)

	_, err = svc.Login(context.Background(), "user@example.com", "sturdy-pass1")

	assert.NoError(t, err)
}

func TestAccountService_ProviderLogin_ExistingPrincipal(t *testing.T) {
	m := defaultAccountMocks()
	m.principalRepo.GetByProviderIDFunc = func(ctx context.Context, provider models.ProviderKind, providerUserID string) (*models.Principal, error) {
		return &models.Principal{ID: "pg", UserID: "u1", Provider: provider, ProviderUserID: providerUserID}, nil
	}

	svc := newAccountService(m, true)

	pair, err := svc.ProviderLogin(context.Background(), &providers.ExternalIdentity{
		Provider:       models.ProviderGoogle,
		ProviderUserID: "goog-1",
		Email:          "user@example.com",
		EmailVerified:  true,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestAccountService_ProviderLogin_MergesIntoSameEmailAccount(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{ID: "u1", Email: email, EmailVerified: true}, nil
	}

	linked := false
	m.principals.LinkProviderFunc = func(ctx context.Context, user *models.User, provider models.ProviderKind, providerUserID, email string, emailVerified bool) (*models.Principal, error) {
		linked = true
		return &models.Principal{ID: "pg", UserID: user.ID, Provider: provider, ProviderUserID: providerUserID}, nil
	}

	svc := newAccountService(m, true)

	_, err := svc.ProviderLogin(context.Background(), &providers.ExternalIdentity{
		Provider:       models.ProviderGoogle,
		ProviderUserID: "goog-1",
		Email:          "user@example.com",
		EmailVerified:  true,
	})

	require.NoError(t, err)
	assert.True(t, linked)
}

func TestAccountService_ProviderLogin_RefusesMergeOnUnverifiedEmail(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{ID: "u1", Email: email}, nil
	}

	svc := newAccountService(m, true)

	_, err := svc.ProviderLogin(context.Background(), &providers.ExternalIdentity{
		Provider:       models.ProviderGoogle,
		ProviderUserID: "goog-1",
		Email:          "user@example.com",
		EmailVerified:  false,
	})

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_ProviderLogin_FreshRegistration(t *testing.T) {
	m := defaultAccountMocks()

	var createdUser *models.User
	m.userRepo.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		user.ID = "u1"
		createdUser = user
		return user, nil
	}

	var createdPrincipal *models.Principal
	m.principalRepo.CreateFunc = func(ctx context.Context, p *models.Principal) (*models.Principal, error) {
		p.ID = "pg"
		createdPrincipal = p
		return p, nil
	}

	svc := newAccountService(m, true)

	_, err := svc.ProviderLogin(context.Background(), &providers.ExternalIdentity{
		Provider:       models.ProviderGoogle,
		ProviderUserID: "goog-1",
		Email:          "fresh@example.com",
		Name:           "Fresh User",
		EmailVerified:  true,
	})

	require.NoError(t, err)
	require.NotNil(t, createdUser)
	assert.True(t, createdUser.EmailVerified)
	assert.Equal(t, "Fresh User", createdUser.Username)
	require.NotNil(t, createdPrincipal)
	assert.Equal(t, "goog-1", createdPrincipal.ProviderUserID)
}

func TestAccountService_VerifyEmail_MarksPrincipalAndUser(t *testing.T) {
	m := defaultAccountMocks()
	m.tokens.ConsumeFunc = func(ctx context.Context, code string, expectedPurpose models.TokenPurpose) (*models.Principal, error) {
		assert.Equal(t, models.PurposeEmailVerification, expectedPurpose)
		return &models.Principal{ID: "p1", UserID: "u1"}, nil
	}

	principalVerified := false
	m.principalRepo.SetEmailVerifiedFunc = func(ctx context.Context, id string, verified bool) error {
		principalVerified = verified
		return nil
	}

	userVerified := false
	m.userRepo.SetEmailVerifiedFunc = func(ctx context.Context, id string, verified bool) error {
		userVerified = verified
		return nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.VerifyEmail(context.Background(), "code"))
	assert.True(t, principalVerified)
	assert.True(t, userVerified)
}

func TestAccountService_VerifyEmail_InvalidCode(t *testing.T) {
	m := defaultAccountMocks()
	svc := newAccountService(m, true)

	err := svc.VerifyEmail(context.Background(), "bogus")

	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestAccountService_ResendVerification_SilentOnUnknownEmail(t *testing.T) {
	m := defaultAccountMocks()

	issued := false
	m.tokens.IssueFunc = func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
		issued = true
		return nil
	}

	svc := newAccountService(m, true)

	assert.NoError(t, svc.ResendVerification(context.Background(), "ghost@example.com"))
	assert.False(t, issued)
}

func TestAccountService_ResendVerification_SilentWhenAlreadyVerified(t *testing.T) {
	m := defaultAccountMocks()
	m.principalRepo.GetLocalByEmailFunc = func(ctx context.Context, email string) (*models.Principal, error) {
		return &models.Principal{ID: "p1", EmailVerified: true}, nil
	}

	issued := false
	m.tokens.IssueFunc = func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
		issued = true
		return nil
	}

	svc := newAccountService(m, true)

	assert.NoError(t, svc.ResendVerification(context.Background(), "user@example.com"))
	assert.False(t, issued)
}

func TestAccountService_RequestEmailChange_Success(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "old@example.com", EmailVerified: true}, nil
	}
	m.principals.FindLocalFunc = func(ctx context.Context, user *models.User) (*models.Principal, error) {
		return &models.Principal{ID: "pl", UserID: user.ID, Provider: models.ProviderLocal, PasswordHash: "hash", Email: user.Email}, nil
	}

	var pending *models.Principal
	m.principalRepo.CreateFunc = func(ctx context.Context, p *models.Principal) (*models.Principal, error) {
		p.ID = "pending"
		pending = p
		return p, nil
	}

	issuedPurpose := models.TokenPurpose("")
	m.tokens.IssueFunc = func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
		issuedPurpose = purpose
		return nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.RequestEmailChange(context.Background(), "u1", "new@example.com"))

	require.NotNil(t, pending)
	assert.Equal(t, "new@example.com", pending.Email)
	assert.False(t, pending.EmailVerified)
	assert.Equal(t, "hash", pending.PasswordHash, "credential carries over to the pending principal")
	assert.Equal(t, models.PurposeEmailChange, issuedPurpose)
}

func TestAccountService_RequestEmailChange_SameEmail(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "user@example.com"}, nil
	}

	svc := newAccountService(m, true)

	err := svc.RequestEmailChange(context.Background(), "u1", "User@Example.com")

	assert.ErrorIs(t, err, models.ErrSameEmail)
}

func TestAccountService_RequestEmailChange_EmailTaken(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "old@example.com"}, nil
	}
	m.userRepo.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{ID: "other", Email: email}, nil
	}

	svc := newAccountService(m, true)

	err := svc.RequestEmailChange(context.Background(), "u1", "taken@example.com")

	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestAccountService_RequestEmailChange_NoLocalCredential(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "old@example.com"}, nil
	}

	svc := newAccountService(m, true)

	err := svc.RequestEmailChange(context.Background(), "u1", "new@example.com")

	assert.ErrorIs(t, err, models.ErrNoLocalAuthMethod)
}

func TestAccountService_RequestEmailChange_PendingAlreadyExists(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "old@example.com"}, nil
	}
	m.principals.FindLocalFunc = func(ctx context.Context, user *models.User) (*models.Principal, error) {
		return &models.Principal{ID: "pl", Provider: models.ProviderLocal}, nil
	}
	m.principals.FindPendingLocalFunc = func(ctx context.Context, user *models.User) (*models.Principal, error) {
		return &models.Principal{ID: "pending"}, nil
	}

	svc := newAccountService(m, true)

	err := svc.RequestEmailChange(context.Background(), "u1", "new@example.com")

	assert.ErrorIs(t, err, models.ErrPendingChangeExists)
}

func TestAccountService_CancelEmailChange_DiscardsPending(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "old@example.com"}, nil
	}
	m.principals.FindPendingLocalFunc = func(ctx context.Context, user *models.User) (*models.Principal, error) {
		return &models.Principal{ID: "pending", Email: "new@example.com"}, nil
	}

	discarded := ""
	m.tokens.DiscardFunc = func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
		discarded = principal.ID
		assert.Equal(t, models.PurposeEmailChange, purpose)
		return nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.CancelEmailChange(context.Background(), "u1"))
	assert.Equal(t, "pending", discarded)
}

func TestAccountService_ConfirmEmailChange_PromotesPending(t *testing.T) {
	m := defaultAccountMocks()
	m.tokens.ConsumeFunc = func(ctx context.Context, code string, expectedPurpose models.TokenPurpose) (*models.Principal, error) {
		assert.Equal(t, models.PurposeEmailChange, expectedPurpose)
		return &models.Principal{ID: "pending", UserID: "u1", Provider: models.ProviderLocal, Email: "new@example.com"}, nil
	}
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "old@example.com"}, nil
	}
	m.principalRepo.ListByUserFunc = func(ctx context.Context, userID string) ([]*models.Principal, error) {
		return []*models.Principal{
			{ID: "old-local", UserID: userID, Provider: models.ProviderLocal, Email: "old@example.com"},
			{ID: "pending", UserID: userID, Provider: models.ProviderLocal, Email: "new@example.com"},
		}, nil
	}

	deletedPrincipal := ""
	m.principalRepo.DeleteFunc = func(ctx context.Context, id string) error {
		deletedPrincipal = id
		return nil
	}

	promoted := ""
	m.principalRepo.SetEmailVerifiedFunc = func(ctx context.Context, id string, verified bool) error {
		promoted = id
		assert.True(t, verified)
		return nil
	}

	newEmail := ""
	m.userRepo.UpdateEmailFunc = func(ctx context.Context, id, email string, verified bool) (*models.User, error) {
		newEmail = email
		assert.True(t, verified)
		return &models.User{ID: id, Email: email, EmailVerified: verified}, nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.ConfirmEmailChange(context.Background(), "code"))
	assert.Equal(t, "old-local", deletedPrincipal, "old local principal retires")
	assert.Equal(t, "pending", promoted)
	assert.Equal(t, "new@example.com", newEmail)
}

func TestAccountService_ConfirmEmailChange_UnlinksStaleProviderPrincipal(t *testing.T) {
	m := defaultAccountMocks()
	m.tokens.ConsumeFunc = func(ctx context.Context, code string, expectedPurpose models.TokenPurpose) (*models.Principal, error) {
		return &models.Principal{ID: "pending", UserID: "u1", Provider: models.ProviderLocal, Email: "new@example.com"}, nil
	}
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "old@example.com"}, nil
	}
	m.principalRepo.ListByUserFunc = func(ctx context.Context, userID string) ([]*models.Principal, error) {
		return []*models.Principal{
			{ID: "old-local", UserID: userID, Provider: models.ProviderLocal, Email: "old@example.com"},
			{ID: "google-stale", UserID: userID, Provider: models.ProviderGoogle, ProviderUserID: "g1", Email: "old@example.com"},
			{ID: "pending", UserID: userID, Provider: models.ProviderLocal, Email: "new@example.com"},
		}, nil
	}
	m.userRepo.UpdateEmailFunc = func(ctx context.Context, id, email string, verified bool) (*models.User, error) {
		return &models.User{ID: id, Email: email, EmailVerified: verified}, nil
	}

	var deleted []string
	m.principalRepo.DeleteFunc = func(ctx context.Context, id string) error {
		deleted = append(deleted, id)
		return nil
	}

	var clearedTokens []string
	m.tokenRepo.DeleteAllByPrincipalFunc = func(ctx context.Context, principalID string) error {
		clearedTokens = append(clearedTokens, principalID)
		return nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.ConfirmEmailChange(context.Background(), "code"))
	assert.ElementsMatch(t, []string{"old-local", "google-stale"}, deleted,
		"every principal tied to the old address is unlinked, provider ones included")
	assert.ElementsMatch(t, []string{"old-local", "google-stale"}, clearedTokens)
}

func TestAccountService_RequestPasswordReset_SilentOnUnknownEmail(t *testing.T) {
	m := defaultAccountMocks()

	issued := false
	m.tokens.IssueFunc = func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
		issued = true
		return nil
	}

	svc := newAccountService(m, true)

	assert.NoError(t, svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.False(t, issued)
}

func TestAccountService_ResetPassword_Success(t *testing.T) {
	m := defaultAccountMocks()
	m.tokens.ConsumeFunc = func(ctx context.Context, code string, expectedPurpose models.TokenPurpose) (*models.Principal, error) {
		assert.Equal(t, models.PurposePasswordReset, expectedPurpose)
		return &models.Principal{ID: "p1", UserID: "u1"}, nil
	}

	var newHash string
	m.principalRepo.UpdatePasswordFunc = func(ctx context.Context, id, passwordHash string) error {
		newHash = passwordHash
		return nil
	}

	revoked := ""
	m.sessions.RevokeAllForUserFunc = func(ctx context.Context, userID string) error {
		revoked = userID
		return nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.ResetPassword(context.Background(), "code", "fresh-pass1"))
	assert.NoError(t, auth.ComparePassword(newHash, "fresh-pass1"))
	assert.Equal(t, "u1", revoked, "reset drops every open session")
}

func TestAccountService_ResetPassword_WeakPasswordLeavesTokenUnconsumed(t *testing.T) {
	m := defaultAccountMocks()

	consumed := false
	m.tokens.ConsumeFunc = func(ctx context.Context, code string, expectedPurpose models.TokenPurpose) (*models.Principal, error) {
		consumed = true
		return &models.Principal{ID: "p1", UserID: "u1"}, nil
	}

	svc := newAccountService(m, true)

	err := svc.ResetPassword(context.Background(), "code", "short")

	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.False(t, consumed, "the one-time code must survive a rejected password")
}

func TestAccountService_ChangePassword_Success(t *testing.T) {
	hash, err := auth.HashPassword("current-pass1")
	require.NoError(t, err)

	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "user@example.com"}, nil
	}
	m.principals.FindLocalFunc = func(ctx context.Context, user *models.User) (*models.Principal, error) {
		return &models.Principal{ID: "pl", UserID: user.ID, PasswordHash: hash}, nil
	}

	updated := false
	m.principalRepo.UpdatePasswordFunc = func(ctx context.Context, id, passwordHash string) error {
		updated = true
		return nil
	}

	revoked := ""
	m.sessions.RevokeAllForUserFunc = func(ctx context.Context, userID string) error {
		revoked = userID
		return nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", "current-pass1", "fresh-pass1"))
	assert.True(t, updated)
	assert.Equal(t, "u1", revoked)
}

func TestAccountService_ChangePassword_WrongCurrentPassword(t *testing.T) {
	hash, err := auth.HashPassword("current-pass1")
	require.NoError(t, err)

	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "user@example.com"}, nil
	}
	m.principals.FindLocalFunc = func(ctx context.Context, user *models.User) (*models.Principal, error) {
		return &models.Principal{ID: "pl", UserID: user.ID, PasswordHash: hash}, nil
	}

	svc := newAccountService(m, true)

	err = svc.ChangePassword(context.Background(), "u1", "not-the-pass1", "fresh-pass1")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAccountService_ChangePassword_NoLocalCredential(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "user@example.com"}, nil
	}

	svc := newAccountService(m, true)

	err := svc.ChangePassword(context.Background(), "u1", "whatever12", "fresh-pass1")

	assert.ErrorIs(t, err, models.ErrNoLocalAuthMethod)
}

func TestAccountService_LinkLocal_VerifiedAccountSkipsEmailRound(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "user@example.com", EmailVerified: true}, nil
	}
	m.principals.LinkLocalFunc = func(ctx context.Context, user *models.User, email, password string) (*models.Principal, error) {
		return &models.Principal{ID: "pl", UserID: user.ID, Provider: models.ProviderLocal, Email: email}, nil
	}

	markedVerified := false
	m.principalRepo.SetEmailVerifiedFunc = func(ctx context.Context, id string, verified bool) error {
		markedVerified = verified
		return nil
	}

	issued := false
	m.tokens.IssueFunc = func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
		issued = true
		return nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.LinkLocal(context.Background(), "u1", "sturdy-pass1"))
	assert.True(t, markedVerified, "proven mailbox carries over to the new credential")
	assert.False(t, issued)
}

func TestAccountService_LinkLocal_UnverifiedAccountGetsCode(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "user@example.com", EmailVerified: false}, nil
	}
	m.principals.LinkLocalFunc = func(ctx context.Context, user *models.User, email, password string) (*models.Principal, error) {
		return &models.Principal{ID: "pl", UserID: user.ID, Provider: models.ProviderLocal, Email: email}, nil
	}

	issuedPurpose := models.TokenPurpose("")
	m.tokens.IssueFunc = func(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error {
		issuedPurpose = purpose
		return nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.LinkLocal(context.Background(), "u1", "sturdy-pass1"))
	assert.Equal(t, models.PurposeEmailVerification, issuedPurpose)
}

func TestAccountService_Unlink_PropagatesSessionDrop(t *testing.T) {
	m := defaultAccountMocks()
	m.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return &models.User{ID: id, Email: "user@example.com"}, nil
	}
	m.principals.UnlinkFunc = func(ctx context.Context, user *models.User, provider models.ProviderKind, sessionPrincipalID string) (bool, error) {
		return true, nil
	}

	svc := newAccountService(m, true)

	droppedSession, err := svc.Unlink(context.Background(), "u1", models.ProviderGoogle, "pg")

	require.NoError(t, err)
	assert.True(t, droppedSession)
}

func TestAccountService_DeleteAccount_Cascade(t *testing.T) {
	m := defaultAccountMocks()
	m.principalRepo.ListByUserFunc = func(ctx context.Context, userID string) ([]*models.Principal, error) {
		return []*models.Principal{
			{ID: "pl", UserID: userID, Provider: models.ProviderLocal},
			{ID: "pg", UserID: userID, Provider: models.ProviderGoogle},
		}, nil
	}

	tokensDropped := []string{}
	m.tokenRepo.DeleteAllByPrincipalFunc = func(ctx context.Context, principalID string) error {
		tokensDropped = append(tokensDropped, principalID)
		return nil
	}

	principalsDropped := false
	m.principalRepo.DeleteAllByUserFunc = func(ctx context.Context, userID string) error {
		principalsDropped = true
		return nil
	}

	sessionsRevoked := false
	m.sessions.RevokeAllForUserFunc = func(ctx context.Context, userID string) error {
		sessionsRevoked = true
		return nil
	}

	userDeleted := ""
	m.userRepo.DeleteFunc = func(ctx context.Context, id string) error {
		userDeleted = id
		return nil
	}

	svc := newAccountService(m, true)

	require.NoError(t, svc.DeleteAccount(context.Background(), "u1"))
	assert.ElementsMatch(t, []string{"pl", "pg"}, tokensDropped)
	assert.True(t, principalsDropped)
	assert.True(t, sessionsRevoked)
	assert.Equal(t, "u1", userDeleted)
}
