package providers

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/wordweave/wordweave/internal/models"
)

// ExternalIdentity is the normalized result of a provider token exchange.
// All providers reduce to this tuple before the account workflow sees them.
type ExternalIdentity struct {
	Provider       models.ProviderKind
	ProviderUserID string
	Email          string
	Name           string
	EmailVerified  bool
}

// IdentityVerifier exchanges an authorization code for a verified identity.
// The OAuth2/OIDC handshake itself is the provider's business; the workflow
// only consumes the normalized result.
type IdentityVerifier interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}

// GenerateState generates a cryptographically secure random state string
// for the authorization-code round trip.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
