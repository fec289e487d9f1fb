package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wordweave/wordweave/internal/auth"
	"github.com/wordweave/wordweave/internal/models"
	"github.com/wordweave/wordweave/internal/providers"
	pkghttp "github.com/wordweave/wordweave/pkg/http"
)

// AccountWorkflow defines the interface for the account lifecycle operations
// the auth endpoints need
type AccountWorkflow interface {
	Register(ctx context.Context, email, username, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	ProviderLogin(ctx context.Context, identity *providers.ExternalIdentity) (*models.TokenPair, error)
	VerifyEmail(ctx context.Context, code string) error
	ResendVerification(ctx context.Context, email string) error
}

// SessionWorkflow defines the interface for session issuance and revocation
type SessionWorkflow interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// UserResolver resolves the account behind an authenticated principal
type UserResolver interface {
	GetByPrincipal(ctx context.Context, principalID string) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests. Tokens travel as
// HttpOnly cookies; the refresh cookie is scoped to the refresh endpoint.
type AuthHandler struct {
	accounts     AccountWorkflow
	sessions     SessionWorkflow
	users        UserResolver
	google       providers.IdentityVerifier
	cookieConfig auth.CookieConfig
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	accounts AccountWorkflow,
	sessions SessionWorkflow,
	users UserResolver,
	google providers.IdentityVerifier,
	cookieConfig auth.CookieConfig,
	accessTTL, refreshTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		sessions:     sessions,
		users:        users,
		google:       google,
		cookieConfig: cookieConfig,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
	}
}

const oauthStateCookieName = "oauth_state"

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyEmailRequest represents the request body for email verification
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendVerificationRequest represents the request body for resending the verification email
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Register handles account registration
// @Summary Register an account
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 202
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_, err := h.accounts.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrEmailTaken):
			// Identical response for taken emails keeps the endpoint from
			// confirming which addresses hold accounts.
			pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
				"message": "Registration received. Check your email for a verification link.",
			})
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "Registration received. Check your email for a verification link.",
	})
}

// Login handles local-credential login
// @Summary Log in with email and password
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmailNotVerified):
			pkghttp.WriteForbidden(w, "Email address not verified")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.setSessionCookies(w, pair)
	w.WriteHeader(http.StatusNoContent)
}

// Refresh exchanges the refresh cookie for a new access token
// @Summary Refresh the access token
// @Produce json
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := auth.GetRefreshTokenCookie(r)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Missing refresh token")
		return
	}

	accessToken, err := h.sessions.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) || errors.Is(err, models.ErrRefreshRevoked) {
			auth.ClearTokenCookies(w, h.cookieConfig)
			pkghttp.WriteUnauthorized(w, "Invalid or revoked refresh token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetAccessTokenCookie(w, accessToken, h.accessTTL, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// Logout revokes the current session
// @Summary Log out
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken, err := auth.GetRefreshTokenCookie(r); err == nil {
		if err := h.sessions.Logout(r.Context(), refreshToken); err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	auth.ClearTokenCookies(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes every session of the authenticated account
// @Summary Log out everywhere
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromRequest(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	user, err := h.users.GetByPrincipal(r.Context(), claims.PrincipalID())
	if err != nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.sessions.RevokeAllForUser(r.Context(), user.ID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.ClearTokenCookies(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail consumes a verification code
// @Summary Verify an email address
// @Accept json
// @Param request body VerifyEmailRequest true "Verify email request"
// @Produce json
// @Success 200
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.accounts.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			pkghttp.WriteUnauthorized(w, "Invalid or expired verification token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully. Please log in.",
	})
}

// ResendVerification re-sends the verification email
// @Summary Resend the verification email
// @Accept json
// @Param request body ResendVerificationRequest true "Resend request"
// @Produce json
// @Success 202
// @Router /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Always 202: the response never reveals whether the account exists.
	_ = h.accounts.ResendVerification(r.Context(), req.Email)

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists with this email, a verification email will be sent.",
	})
}

// GoogleStart redirects the browser into the Google consent flow
// @Summary Start Google sign-in
// @Success 302
// @Router /auth/google [get]
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		pkghttp.WriteNotFound(w, "Google sign-in is not configured")
		return
	}

	state, err := providers.GenerateState()
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieConfig.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback completes the Google sign-in round trip
// @Summary Google sign-in callback
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		pkghttp.WriteNotFound(w, "Google sign-in is not configured")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		pkghttp.WriteUnauthorized(w, "Invalid OAuth state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		pkghttp.WriteBadRequest(w, "Missing authorization code")
		return
	}

	identity, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Identity verification failed")
		return
	}

	pair, err := h.accounts.ProviderLogin(r.Context(), identity)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication failed")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.setSessionCookies(w, pair)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, pair *models.TokenPair) {
	auth.SetAccessTokenCookie(w, pair.AccessToken, h.accessTTL, h.cookieConfig)
	auth.SetRefreshTokenCookie(w, pair.RefreshToken, h.refreshTTL, h.cookieConfig)
}
