package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wordweave/wordweave/internal/models"
	"github.com/wordweave/wordweave/internal/providers"
	"github.com/wordweave/wordweave/pkg/auth"
	"github.com/wordweave/wordweave/pkg/logger"
)

// TokenStore defines the interface for one-time verification codes
type TokenStore interface {
	Issue(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error
	Consume(ctx context.Context, code string, expectedPurpose models.TokenPurpose) (*models.Principal, error)
	Discard(ctx context.Context, principal *models.Principal, purpose models.TokenPurpose) error
}

// SessionManager defines the interface for session issuance and revocation
type SessionManager interface {
	IssueLiveSession(ctx context.Context, principal *models.Principal) (*models.TokenPair, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}

// PrincipalManager defines the interface for auth-method maintenance
type PrincipalManager interface {
	LinkLocal(ctx context.Context, user *models.User, email, password string) (*models.Principal, error)
	LinkProvider(ctx context.Context, user *models.User, provider models.ProviderKind, providerUserID, email string, emailVerified bool) (*models.Principal, error)
	Unlink(ctx context.Context, user *models.User, provider models.ProviderKind, sessionPrincipalID string) (bool, error)
	FindLocal(ctx context.Context, user *models.User) (*models.Principal, error)
	FindPendingLocal(ctx context.Context, user *models.User) (*models.Principal, error)
}

// AccountService orchestrates the account lifecycle: registration, login,
// provider sign-in, email verification and change, password management,
// linking and unlinking, deletion. It coordinates the token store, session
// manager, and principal registry; transport concerns stay outside.
type AccountService struct {
	userRepo             UserRepository
	principalRepo        PrincipalRepository
	tokenRepo            VerificationTokenRepository
	principals           PrincipalManager
	tokens               TokenStore
	sessions             SessionManager
	logger               *slog.Logger
	auditLogger          *logger.AuditLogger
	requireVerifiedEmail bool
}

// NewAccountService creates a new AccountService
func NewAccountService(
	userRepo UserRepository,
	principalRepo PrincipalRepository,
	tokenRepo VerificationTokenRepository,
	principals PrincipalManager,
	tokens TokenStore,
	sessions SessionManager,
	log *slog.Logger,
	auditLogger *logger.AuditLogger,
	requireVerifiedEmail bool,
) *AccountService {
	return &AccountService{
		userRepo:             userRepo,
		principalRepo:        principalRepo,
		tokenRepo:            tokenRepo,
		principals:           principals,
		tokens:               tokens,
		sessions:             sessions,
		logger:               log,
		auditLogger:          auditLogger,
		requireVerifiedEmail: requireVerifiedEmail,
	}
}

// Register creates an account with a local credential and sends the
// verification email. The account stays unverified until the code is
// consumed.
func (s *AccountService) Register(ctx context.Context, email, username, password string) (*models.User, error) {
	email = normalizeEmail(email)

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, models.ErrEmailTaken
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := auth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.userRepo.Create(ctx, &models.User{
		Email:         email,
		EmailVerified: false,
		Username:      username,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrEmailTaken
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	principal, err := s.principalRepo.Create(ctx, &models.Principal{
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
		// A user row with no principal can never sign in or re-register;
		// remove it so the address stays usable.
		if delErr := s.userRepo.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error("failed to remove user after principal create failure",
				slog.String("user_id", user.ID),
				slog.Any("error", delErr))
		}
		return nil, models.ErrInternalServer
	}

	if err := s.tokens.Issue(ctx, principal, models.PurposeEmailVerification); err != nil {
		// Account exists; the user can request a resend.
		s.logger.Error("failed to issue verification token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction("account_registered", user.ID, map[string]string{
		"email": logger.SanitizedEmail(email),
	})

	return user, nil
}

// Login authenticates a local credential and issues a live session.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	email = normalizeEmail(email)

	principal, err := s.principalRepo.GetLocalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthAttempt(logger.AuditEvent{
				EventType:     "login",
				Success:       false,
				FailureReason: "unknown_email",
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up local principal", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := auth.ComparePassword(principal.PasswordHash, password); err != nil {
		s.auditLogger.LogAuthAttempt(logger.AuditEvent{
			EventType:     "login",
			PrincipalID:   principal.ID,
			Success:       false,
			FailureReason: "invalid_password",
		})
		return nil, models.ErrUnauthorized
	}

	if s.requireVerifiedEmail && !principal.EmailVerified {
		s.auditLogger.LogAuthAttempt(logger.AuditEvent{
			EventType:     "login",
			UserID:        principal.UserID,
			PrincipalID:   principal.ID,
			Success:       false,
			FailureReason: "email_not_verified",
		})
		return nil, models.ErrEmailNotVerified
	}

	pair, err := s.sessions.IssueLiveSession(ctx, principal)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(logger.AuditEvent{
		EventType:   "login",
		UserID:      principal.UserID,
		PrincipalID: principal.ID,
		Success:     true,
	})

	return pair, nil
}

// ProviderLogin signs in with a verified external identity. Resolution
// order: existing principal for the (provider, providerUserID) pair, then
// merge into the same-email account when the provider asserts the email is
// verified, then a fresh registration.
func (s *AccountService) ProviderLogin(ctx context.Context, identity *providers.ExternalIdentity) (*models.TokenPair, error) {
	principal, err := s.principalRepo.GetByProviderID(ctx, identity.Provider, identity.ProviderUserID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up provider principal", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if principal == nil {
		principal, err = s.resolveProviderIdentity(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	pair, err := s.sessions.IssueLiveSession(ctx, principal)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(logger.AuditEvent{
		EventType:   "provider_login",
		UserID:      principal.UserID,
		PrincipalID: principal.ID,
		Success:     true,
		Metadata:    map[string]string{"provider": string(identity.Provider)},
	})

	return pair, nil
}

// resolveProviderIdentity attaches a first-seen external identity to an
// account: the same-email account when the provider vouches for the email,
// otherwise a freshly registered one.
func (s *AccountService) resolveProviderIdentity(ctx context.Context, identity *providers.ExternalIdentity) (*models.Principal, error) {
	email := normalizeEmail(identity.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user != nil {
		// An unverified provider email is no proof of account ownership;
		// refusing the merge keeps the existing account safe.
		if !identity.EmailVerified {
			s.auditLogger.LogAuthAttempt(logger.AuditEvent{
				EventType:     "provider_login",
				UserID:        user.ID,
				Success:       false,
				FailureReason: "unverified_provider_email",
			})
			return nil, models.ErrUnauthorized
		}

		return s.principals.LinkProvider(ctx, user, identity.Provider, identity.ProviderUserID, email, true)
	}

	user, err = s.userRepo.Create(ctx, &models.User{
		Email:         email,
		EmailVerified: identity.EmailVerified,
		Username:      usernameFromIdentity(identity),
	})
	if err != nil {
		s.logger.Error("failed to create user from provider identity", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	principal, err := s.principalRepo.Create(ctx, &models.Principal{
		UserID:         user.ID,
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		Email:          email,
		EmailVerified:  identity.EmailVerified,
	})
	if err != nil {
		s.logger.Error("failed to create provider principal",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("account_registered", user.ID, map[string]string{
		"provider": string(identity.Provider),
	})

	return principal, nil
}

// VerifyEmail consumes a verification code and marks the principal and its
// account verified.
func (s *AccountService) VerifyEmail(ctx context.Context, code string) error {
	principal, err := s.tokens.Consume(ctx, code, models.PurposeEmailVerification)
	if err != nil {
		return err
	}

	if err := s.principalRepo.SetEmailVerified(ctx, principal.ID, true); err != nil {
		s.logger.Error("failed to mark principal verified",
			slog.String("principal_id", principal.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.userRepo.SetEmailVerified(ctx, principal.UserID, true); err != nil {
		s.logger.Error("failed to mark user verified",
			slog.String("user_id", principal.UserID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("email_verified", principal.UserID, nil)

	return nil
}

// ResendVerification re-issues the verification code. Silent on unknown or
// already-verified addresses so the endpoint leaks no account existence.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	principal, err := s.principalRepo.GetLocalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to look up local principal", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if principal.EmailVerified {
		return nil
	}

	return s.tokens.Issue(ctx, principal, models.PurposeEmailVerification)
}

// RequestEmailChange starts an email change. The candidate address is parked
// on a pending local principal and must be proven before it replaces the
// canonical one.
func (s *AccountService) RequestEmailChange(ctx context.Context, userID, newEmail string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	newEmail = normalizeEmail(newEmail)
	if newEmail == user.Email {
		return models.ErrSameEmail
	}

	if _, err := s.userRepo.GetByEmail(ctx, newEmail); err == nil {
		return models.ErrEmailTaken
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return models.ErrInternalServer
	}

	local, err := s.principals.FindLocal(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNoLocalAuthMethod
		}
		s.logger.Error("failed to find local principal", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.principals.FindPendingLocal(ctx, user); err == nil {
		return models.ErrPendingChangeExists
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for pending change", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// The pending principal carries the credential forward so the password
	// survives the promotion.
	pending, err := s.principalRepo.Create(ctx, &models.Principal{
		UserID:        user.ID,
		Provider:      models.ProviderLocal,
		PasswordHash:  local.PasswordHash,
		Email:         newEmail,
		EmailVerified: false,
	})
	if err != nil {
		s.logger.Error("failed to create pending principal",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.tokens.Issue(ctx, pending, models.PurposeEmailChange); err != nil {
		return err
	}

	s.auditLogger.LogSensitiveAction("email_change_requested", user.ID, true)

	return nil
}

// ResendEmailChange re-sends the confirmation code for a pending change.
func (s *AccountService) ResendEmailChange(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	pending, err := s.principals.FindPendingLocal(ctx, user)
	if err != nil {
		return err
	}

	return s.tokens.Issue(ctx, pending, models.PurposeEmailChange)
}

// CancelEmailChange abandons a pending email change: the code and the
// pending principal are both removed.
func (s *AccountService) CancelEmailChange(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	pending, err := s.principals.FindPendingLocal(ctx, user)
	if err != nil {
		return err
	}

	if err := s.tokens.Discard(ctx, pending, models.PurposeEmailChange); err != nil {
		return err
	}

	s.auditLogger.LogSensitiveAction("email_change_cancelled", user.ID, true)

	return nil
}

// ConfirmEmailChange consumes the change code, promotes the pending
// principal to canonical, retires every principal still tied to the old
// address, and rewrites the account's email.
func (s *AccountService) ConfirmEmailChange(ctx context.Context, code string) error {
	pending, err := s.tokens.Consume(ctx, code, models.PurposeEmailChange)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, pending.UserID)
	if err != nil {
		s.logger.Error("failed to load user for email change",
			slog.String("user_id", pending.UserID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	principals, err := s.principalRepo.ListByUser(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to list principals",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	// The old mailbox is no longer the account's; any principal still
	// carrying it, local or provider, loses sign-in power.
	for _, p := range principals {
		if p.ID == pending.ID || p.Email == pending.Email {
			continue
		}
		if err := s.tokenRepo.DeleteAllByPrincipal(ctx, p.ID); err != nil {
			s.logger.Error("failed to delete stale principal tokens",
				slog.String("principal_id", p.ID),
				slog.Any("error", err))
			return models.ErrInternalServer
		}
		if err := s.principalRepo.Delete(ctx, p.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to delete stale principal",
				slog.String("principal_id", p.ID),
				slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	if err := s.principalRepo.SetEmailVerified(ctx, pending.ID, true); err != nil {
		s.logger.Error("failed to promote pending principal",
			slog.String("principal_id", pending.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.userRepo.UpdateEmail(ctx, user.ID, pending.Email, true); err != nil {
		s.logger.Error("failed to update account email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogSensitiveAction("email_change_confirmed", user.ID, true)

	return nil
}

// RequestPasswordReset issues a reset code. Silent on unknown addresses so
// the endpoint leaks no account existence.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	principal, err := s.principalRepo.GetLocalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to look up local principal", slog.Any("error", err))
		return models.ErrInternalServer
	}

	return s.tokens.Issue(ctx, principal, models.PurposePasswordReset)
}

// ResetPassword consumes a reset code and re-encodes the local credential.
// The code itself is the proof of mailbox control, so no session privilege
// is required. All sessions are revoked afterwards.
func (s *AccountService) ResetPassword(ctx context.Context, code, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	principal, err := s.tokens.Consume(ctx, code, models.PurposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.principalRepo.UpdatePassword(ctx, principal.ID, hash); err != nil {
		s.logger.Error("failed to update password",
			slog.String("principal_id", principal.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.sessions.RevokeAllForUser(ctx, principal.UserID); err != nil {
		return err
	}

	s.auditLogger.LogSensitiveAction("password_reset", principal.UserID, true)

	return nil
}

// ChangePassword rotates the local credential after checking the current
// one, then revokes every session. Recent-login privilege is enforced at the
// transport boundary.
func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	local, err := s.principals.FindLocal(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNoLocalAuthMethod
		}
		s.logger.Error("failed to find local principal", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := auth.ComparePassword(local.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogSensitiveAction("password_change", userID, false)
		return models.ErrUnauthorized
	}

	if err := auth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.principalRepo.UpdatePassword(ctx, local.ID, hash); err != nil {
		s.logger.Error("failed to update password",
			slog.String("principal_id", local.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	s.auditLogger.LogSensitiveAction("password_change", userID, true)

	return nil
}

// LinkLocal adds a password credential to the caller's account. If the
// account email is already proven the credential is usable immediately;
// otherwise a verification code goes out first.
func (s *AccountService) LinkLocal(ctx context.Context, userID, password string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	principal, err := s.principals.LinkLocal(ctx, user, user.Email, password)
	if err != nil {
		return err
	}

	if user.EmailVerified {
		if err := s.principalRepo.SetEmailVerified(ctx, principal.ID, true); err != nil {
			s.logger.Error("failed to mark linked principal verified",
				slog.String("principal_id", principal.ID),
				slog.Any("error", err))
			return models.ErrInternalServer
		}
	} else {
		if err := s.tokens.Issue(ctx, principal, models.PurposeEmailVerification); err != nil {
			return err
		}
	}

	s.auditLogger.LogSensitiveAction("local_credential_linked", userID, true)

	return nil
}

// LinkProvider attaches an external identity to the caller's account.
func (s *AccountService) LinkProvider(ctx context.Context, userID string, identity *providers.ExternalIdentity) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.principals.LinkProvider(ctx, user, identity.Provider, identity.ProviderUserID, normalizeEmail(identity.Email), identity.EmailVerified); err != nil {
		return err
	}

	s.auditLogger.LogSensitiveAction("provider_linked", userID, true)

	return nil
}

// Unlink detaches an auth method. The returned bool tells the transport
// layer whether the caller's own session principal was removed and the
// session must be dropped.
func (s *AccountService) Unlink(ctx context.Context, userID string, provider models.ProviderKind, sessionPrincipalID string) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	droppedSession, err := s.principals.Unlink(ctx, user, provider, sessionPrincipalID)
	if err != nil {
		s.auditLogger.LogSensitiveAction("auth_method_unlinked", userID, false)
		return false, err
	}

	s.auditLogger.LogSensitiveAction("auth_method_unlinked", userID, true)

	return droppedSession, nil
}

// DeleteAccount removes the account and everything attached to it: codes,
// principals, sessions, then the user row.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	principals, err := s.principalRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list principals",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	for _, p := range principals {
		if err := s.tokenRepo.DeleteAllByPrincipal(ctx, p.ID); err != nil {
			s.logger.Error("failed to delete principal tokens",
				slog.String("principal_id", p.ID),
				slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	if err := s.principalRepo.DeleteAllByUser(ctx, userID); err != nil {
		s.logger.Error("failed to delete principals",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		s.logger.Error("failed to delete user",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogSensitiveAction("account_deleted", userID, true)

	return nil
}

// usernameFromIdentity derives a starting username for provider signups.
func usernameFromIdentity(identity *providers.ExternalIdentity) string {
	if identity.Name != "" {
		return identity.Name
	}
	if at := strings.Index(identity.Email, "@"); at > 0 {
		return identity.Email[:at]
	}
	return identity.Email
}
