package auth

import (
	"time"

	"github.com/wordweave/wordweave/internal/models"
)

// Guard gates sensitive account mutations on recent-login privilege. Only an
// access token minted at interactive login (is_live) confers privilege, and
// only until the token's own expiry; tokens minted via refresh never qualify.
type Guard struct{}

// NewGuard creates an account action guard.
func NewGuard() *Guard {
	return &Guard{}
}

// PrivilegeExpiresAt returns when the recent-login privilege carried by the
// claims runs out. The second return is false for refreshed (non-live) tokens.
func (g *Guard) PrivilegeExpiresAt(claims *models.AccessClaims) (time.Time, bool) {
	if claims == nil || !claims.IsLive || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Require returns ErrReauthRequired unless the claims carry live, unexpired
// recent-login privilege.
func (g *Guard) Require(claims *models.AccessClaims) error {
	expiresAt, ok := g.PrivilegeExpiresAt(claims)
	if !ok {
		return models.ErrReauthRequired
	}
	if !time.Now().Before(expiresAt) {
		return models.ErrReauthRequired
	}
	return nil
}
