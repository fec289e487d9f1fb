package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose scopes a verification token to exactly one workflow.
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposeEmailChange       TokenPurpose = "email_change"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// VerificationToken is a single-use code proving control of a mailbox.
// It is owned exclusively by one principal and deleted on consumption,
// cancellation, or expiry.
type VerificationToken struct {
	ID          string
	PrincipalID string
	Token       string
	Purpose     TokenPurpose
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// IsExpired reports whether the token is past its expiry.
func (t *VerificationToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// RefreshToken is the durable session record behind a refresh JWT. Its ID is
// embedded in the token as the jti claim; deleting the row revokes the token.
// A user may hold many live refresh tokens (multi-device).
type RefreshToken struct {
	ID        string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is the pair of session tokens delivered at login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AccessClaims are the claims carried by a stateless access token. IsLive
// distinguishes a token minted at interactive login from one minted by
// exchanging a refresh token; only live tokens confer recent-login privilege.
type AccessClaims struct {
	IsLive bool `json:"is_live"`
	jwt.RegisteredClaims
}

// PrincipalID returns the subject claim, the authenticated principal's id.
func (c *AccessClaims) PrincipalID() string {
	return c.Subject
}
