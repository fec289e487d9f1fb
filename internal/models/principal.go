package models

import (
	"time"
)

// ProviderKind tags the variant of a Principal.
type ProviderKind string

const (
	ProviderLocal  ProviderKind = "local"
	ProviderGoogle ProviderKind = "google"
	ProviderApple  ProviderKind = "apple"
)

// KnownProvider reports whether kind is one of the supported provider tags.
func KnownProvider(kind ProviderKind) bool {
	switch kind {
	case ProviderLocal, ProviderGoogle, ProviderApple:
		return true
	}
	return false
}

// Principal is one authentication method bound to a User. The variant is
// closed: local principals carry a PasswordHash, provider principals carry
// the provider-scoped ProviderUserID. Email is the address this method was
// established with; it may differ from the user's canonical email only for
// the unverified pending principal of an in-flight email change.
type Principal struct {
	ID             string
	UserID         string
	Provider       ProviderKind
	ProviderUserID string // empty for local
	PasswordHash   string // empty for provider principals
	Email          string
	EmailVerified  bool
	CreatedAt      time.Time
}

// IsLocal reports whether this principal is the password-based variant.
func (p *Principal) IsLocal() bool {
	return p.Provider == ProviderLocal
}
