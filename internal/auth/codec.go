package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wordweave/wordweave/internal/models"
)

// Codec mints and verifies the stateless session tokens. Verification is
// pure: no I/O, safe for concurrent use. The signing key is immutable after
// construction.
type Codec struct {
	secret []byte
	logger *slog.Logger
}

// NewCodec creates a Codec from the configured signing secret.
func NewCodec(secret string, logger *slog.Logger) *Codec {
	return &Codec{
		secret: []byte(secret),
		logger: logger,
	}
}

// Mint creates a signed HS256 token for the given principal. isLive marks a
// token issued at interactive login; refresh-minted tokens pass false.
func (c *Codec) Mint(principalID string, ttl time.Duration, isLive bool) (string, error) {
	return c.MintWithID(principalID, uuid.New().String(), ttl, isLive)
}

// MintWithID mints a token with a caller-supplied jti. Refresh tokens use
// this so the jti matches the persisted session row.
func (c *Codec) MintWithID(principalID, tokenID string, ttl time.Duration, isLive bool) (string, error) {
	now := time.Now()

	claims := &models.AccessClaims{
		IsLive: isLive,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify parses and validates a token string. Every failure mode satisfies
// errors.Is(err, models.ErrInvalidToken); the distinct causes are kept for
// diagnostics and logged at different levels.
func (c *Codec) Verify(tokenString string) (*models.AccessClaims, error) {
	claims := &models.AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, models.ErrTokenAlgorithm
		}
		return c.secret, nil
	})

	if err != nil {
		return nil, c.classify(err)
	}

	if !token.Valid {
		return nil, models.ErrInvalidToken
	}

	return claims, nil
}

// classify maps golang-jwt parse errors onto the token failure taxonomy.
func (c *Codec) classify(err error) error {
	switch {
	case errors.Is(err, models.ErrTokenAlgorithm):
		c.logger.Warn("token rejected: unsupported signing algorithm")
		return models.ErrTokenAlgorithm
	case errors.Is(err, jwt.ErrTokenExpired):
		c.logger.Debug("token rejected: expired")
		return models.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		c.logger.Warn("token rejected: signature invalid")
		return models.ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		c.logger.Debug("token rejected: malformed")
		return models.ErrTokenMalformed
	default:
		c.logger.Warn("token rejected", slog.Any("error", err))
		return models.ErrInvalidToken
	}
}
