package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wordweave/wordweave/internal/auth"
	"github.com/wordweave/wordweave/internal/models"
	pkghttp "github.com/wordweave/wordweave/pkg/http"
)

// AccountMutator defines the interface for privileged account mutations
type AccountMutator interface {
	RequestEmailChange(ctx context.Context, userID, newEmail string) error
	ResendEmailChange(ctx context.Context, userID string) error
	CancelEmailChange(ctx context.Context, userID string) error
	ConfirmEmailChange(ctx context.Context, code string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, code, newPassword string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	LinkLocal(ctx context.Context, userID, password string) error
	Unlink(ctx context.Context, userID string, provider models.ProviderKind, sessionPrincipalID string) (bool, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// ProfileService defines the interface for profile reads and updates
type ProfileService interface {
	GetByPrincipal(ctx context.Context, principalID string) (*models.User, error)
	UpdateUsername(ctx context.Context, id, username string) (*models.User, error)
	ListAuthMethods(ctx context.Context, userID string) ([]models.ProviderKind, error)
	IsEmailAvailable(ctx context.Context, email string) (bool, error)
}

// AccountHandler handles account management HTTP requests. Mutations that can
// take over the account demand a live session, enforced through the guard.
type AccountHandler struct {
	accounts     AccountMutator
	profiles     ProfileService
	guard        *auth.Guard
	cookieConfig auth.CookieConfig
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts AccountMutator, profiles ProfileService, guard *auth.Guard, cookieConfig auth.CookieConfig) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		profiles:     profiles,
		guard:        guard,
		cookieConfig: cookieConfig,
	}
}

// Request DTOs

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// RequestPasswordResetRequest represents the request body for a reset request
type RequestPasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for completing a reset
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// RequestEmailChangeRequest represents the request body for an email change
type RequestEmailChangeRequest struct {
	NewEmail string `json:"new_email" validate:"required,email"`
}

// ConfirmEmailChangeRequest represents the request body for confirming a change
type ConfirmEmailChangeRequest struct {
	Token string `json:"token" validate:"required"`
}

// LinkLocalRequest represents the request body for adding a password credential
type LinkLocalRequest struct {
	Password string `json:"password" validate:"required"`
}

// UnlinkRequest represents the request body for removing an auth method
type UnlinkRequest struct {
	Provider string `json:"provider" validate:"required,oneof=local google apple"`
}

// UpdateUsernameRequest represents the request body for a username update
type UpdateUsernameRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
}

// UserResponse represents an account profile
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Username      string    `json:"username"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Username:      user.Username,
		CreatedAt:     user.CreatedAt,
	}
}

// currentUser resolves the authenticated account, or writes a 401.
func (h *AccountHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, *models.AccessClaims, bool) {
	claims := auth.ClaimsFromRequest(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return nil, nil, false
	}

	user, err := h.profiles.GetByPrincipal(r.Context(), claims.PrincipalID())
	if err != nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return nil, nil, false
	}

	return user, claims, true
}

// requireLiveSession enforces recent-login privilege, or writes a 403.
func (h *AccountHandler) requireLiveSession(w http.ResponseWriter, claims *models.AccessClaims) bool {
	if err := h.guard.Require(claims); err != nil {
		pkghttp.WriteForbidden(w, "This action requires a recent login")
		return false
	}
	return true
}

// Me returns the authenticated account's profile
// @Summary Get the current account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} UserResponse
// @Router /account [get]
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateUsername changes the profile username
// @Summary Update the username
// @Security BearerAuth
// @Accept json
// @Param request body UpdateUsernameRequest true "Username request"
// @Produce json
// @Success 200 {object} UserResponse
// @Router /account/username [put]
func (h *AccountHandler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req UpdateUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	updated, err := h.profiles.UpdateUsername(r.Context(), user.ID, req.Username)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid username")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Username already taken")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

// ListAuthMethods returns the providers linked to the account
// @Summary List linked auth methods
// @Security BearerAuth
// @Produce json
// @Success 200
// @Router /account/auth-methods [get]
func (h *AccountHandler) ListAuthMethods(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	methods, err := h.profiles.ListAuthMethods(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string][]models.ProviderKind{"providers": methods})
}

// EmailAvailability reports whether an email is free to register
// @Summary Check email availability
// @Param email query string true "Email address"
// @Produce json
// @Success 200
// @Router /account/email-availability [get]
func (h *AccountHandler) EmailAvailability(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		pkghttp.WriteBadRequest(w, "Missing email parameter")
		return
	}

	available, err := h.profiles.IsEmailAvailable(r.Context(), email)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// ChangePassword rotates the local credential
// @Summary Change the password
// @Security BearerAuth
// @Accept json
// @Param request body ChangePasswordRequest true "Change password request"
// @Success 204
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /account/password [put]
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, claims, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !h.requireLiveSession(w, claims) {
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrNoLocalAuthMethod):
			pkghttp.WriteBadRequest(w, "No password credential on this account")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	// Every session was revoked, including this one.
	auth.ClearTokenCookies(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset starts the reset flow
// @Summary Request a password reset
// @Accept json
// @Param request body RequestPasswordResetRequest true "Reset request"
// @Produce json
// @Success 202
// @Router /account/password/reset [post]
func (h *AccountHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req RequestPasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Always 202: the response never reveals whether the account exists.
	_ = h.accounts.RequestPasswordReset(r.Context(), req.Email)

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists with this email, a reset email will be sent.",
	})
}

// ResetPassword completes the reset flow with the emailed code
// @Summary Reset the password
// @Accept json
// @Param request body ResetPasswordRequest true "Reset request"
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /account/password/reset/confirm [post]
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrInvalidToken):
			pkghttp.WriteUnauthorized(w, "Invalid or expired reset token")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestEmailChange starts an email change
// @Summary Request an email change
// @Security BearerAuth
// @Accept json
// @Param request body RequestEmailChangeRequest true "Email change request"
// @Produce json
// @Success 202
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /account/email [post]
func (h *AccountHandler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	user, claims, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !h.requireLiveSession(w, claims) {
		return
	}

	var req RequestEmailChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.accounts.RequestEmailChange(r.Context(), user.ID, req.NewEmail); err != nil {
		switch {
		case errors.Is(err, models.ErrSameEmail):
			pkghttp.WriteBadRequest(w, "New email matches the current one")
		case errors.Is(err, models.ErrEmailTaken):
			pkghttp.WriteConflict(w, "Email already in use")
		case errors.Is(err, models.ErrNoLocalAuthMethod):
			pkghttp.WriteBadRequest(w, "Add a password credential before changing the email")
		case errors.Is(err, models.ErrPendingChangeExists):
			pkghttp.WriteConflict(w, "An email change is already pending")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "Confirmation email sent to the new address.",
	})
}

// ResendEmailChange re-sends the pending confirmation email
// @Summary Resend the email change confirmation
// @Security BearerAuth
// @Success 202
// @Router /account/email/resend [post]
func (h *AccountHandler) ResendEmailChange(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.accounts.ResendEmailChange(r.Context(), user.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No pending email change")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "Confirmation email re-sent.",
	})
}

// CancelEmailChange abandons the pending email change
// @Summary Cancel the pending email change
// @Security BearerAuth
// @Success 204
// @Router /account/email [delete]
func (h *AccountHandler) CancelEmailChange(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.accounts.CancelEmailChange(r.Context(), user.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No pending email change")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ConfirmEmailChange completes the change with the emailed code. The code is
// the proof, so no session is required; the link lands from the new mailbox.
// @Summary Confirm an email change
// @Accept json
// @Param request body ConfirmEmailChangeRequest true "Confirm request"
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /account/email/confirm [post]
func (h *AccountHandler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	var req ConfirmEmailChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.accounts.ConfirmEmailChange(r.Context(), req.Token); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			pkghttp.WriteUnauthorized(w, "Invalid or expired confirmation token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LinkLocal adds a password credential to the account
// @Summary Add a password credential
// @Security BearerAuth
// @Accept json
// @Param request body LinkLocalRequest true "Link request"
// @Success 204
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /account/auth-methods/local [post]
func (h *AccountHandler) LinkLocal(w http.ResponseWriter, r *http.Request) {
	user, claims, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !h.requireLiveSession(w, claims) {
		return
	}

	var req LinkLocalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.accounts.LinkLocal(r.Context(), user.ID, req.Password); err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyLinked):
			pkghttp.WriteConflict(w, "A password credential already exists")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unlink removes an auth method from the account
// @Summary Remove an auth method
// @Security BearerAuth
// @Accept json
// @Param request body UnlinkRequest true "Unlink request"
// @Success 204
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /account/auth-methods [delete]
func (h *AccountHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	user, claims, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !h.requireLiveSession(w, claims) {
		return
	}

	var req UnlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	droppedSession, err := h.accounts.Unlink(r.Context(), user.ID, models.ProviderKind(req.Provider), claims.PrincipalID())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrLastAuthMethod):
			pkghttp.WriteConflict(w, "Cannot remove the only way to sign in")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Auth method not linked")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	if droppedSession {
		auth.ClearTokenCookies(w, h.cookieConfig)
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount removes the account and everything attached to it
// @Summary Delete the account
// @Security BearerAuth
// @Success 204
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /account [delete]
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, claims, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !h.requireLiveSession(w, claims) {
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), user.ID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.ClearTokenCookies(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}
