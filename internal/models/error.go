package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrUpstream       = errors.New("upstream service failure")

	// Account and login errors
	ErrEmailNotVerified = errors.New("email address not verified")
	ErrEmailTaken       = errors.New("email already registered")

	// Auth method management errors
	ErrLastAuthMethod      = errors.New("cannot remove the last authentication method")
	ErrAlreadyLinked       = errors.New("authentication method already linked")
	ErrEmailMismatch       = errors.New("email does not match account email")
	ErrNoLocalAuthMethod   = errors.New("no local authentication method for user")
	ErrPendingChangeExists = errors.New("pending email change request already exists")
	ErrSameEmail           = errors.New("new email is the same as the current email")

	// Session and privilege errors
	ErrReauthRequired = errors.New("recent login required")
	ErrRefreshRevoked = errors.New("refresh token revoked or unknown")

	// Token errors. All verification and session token failures satisfy
	// errors.Is(err, ErrInvalidToken) so callers see one outcome.
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = wrapToken("token expired")
	ErrTokenMalformed       = wrapToken("token malformed")
	ErrTokenSignature       = wrapToken("token signature invalid")
	ErrTokenAlgorithm       = wrapToken("token signed with unsupported algorithm")
	ErrTokenPurposeMismatch = wrapToken("token purpose mismatch")
)

// tokenError is a distinct cause that normalizes to ErrInvalidToken.
type tokenError struct{ msg string }

func (e *tokenError) Error() string { return e.msg }

func (e *tokenError) Is(target error) bool { return target == ErrInvalidToken }

func wrapToken(msg string) error { return &tokenError{msg: msg} }
