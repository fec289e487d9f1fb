package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/wordweave/wordweave/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleVerifier handles Google OAuth 2.0 / OIDC authentication.
type GoogleVerifier struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// googleClaims are the ID-token claims Google returns that we care about.
type googleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// NewGoogleVerifier creates a new GoogleVerifier.
func NewGoogleVerifier(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleVerifier, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})

	return &GoogleVerifier{
		config:   config,
		verifier: verifier,
	}, nil
}

// AuthCodeURL generates the Google OAuth consent URL with the given state.
func (g *GoogleVerifier) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange exchanges the authorization code for tokens and returns the
// normalized identity.
func (g *GoogleVerifier) Exchange(ctx context.Context, code string) (*ExternalIdentity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", models.ErrUpstream, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in response")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}

	return &ExternalIdentity{
		Provider:       models.ProviderGoogle,
		ProviderUserID: claims.Sub,
		Email:          strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:           claims.Name,
		EmailVerified:  claims.EmailVerified,
	}, nil
}
