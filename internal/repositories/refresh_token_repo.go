package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wordweave/wordweave/internal/database"
	"github.com/wordweave/wordweave/internal/models"
)

// RefreshTokenRepository handles durable refresh-token session records. The
// row id doubles as the jti claim embedded in the refresh JWT; a token whose
// row is gone is revoked.
type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(db *database.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: db.Pool}
}

const refreshTokenColumns = `id, user_id, issued_at, expires_at`

func scanRefreshTokenRow(scanner rowScanner) (*models.RefreshToken, error) {
	var t models.RefreshToken

	err := scanner.Scan(&t.ID, &t.UserID, &t.IssuedAt, &t.ExpiresAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &t, nil
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (id, user_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + refreshTokenColumns

	created, err := scanRefreshTokenRow(r.pool.QueryRow(ctx, query,
		token.ID, token.UserID, token.IssuedAt, token.ExpiresAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return created, nil
}

// GetByID looks up a refresh-token record by its id (the token's jti claim).
func (r *RefreshTokenRepository) GetByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE id = $1`

	return scanRefreshTokenRow(r.pool.QueryRow(ctx, query, id))
}

// Delete revokes a single refresh token. ErrNotFound signals the row was
// already revoked, which callers treat as losing the claim race.
func (r *RefreshTokenRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM refresh_tokens WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteAllByUser revokes every refresh token of a user (logout-everywhere,
// password change, account deletion).
func (r *RefreshTokenRepository) DeleteAllByUser(ctx context.Context, userID string) error {
	query := `DELETE FROM refresh_tokens WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func (r *RefreshTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired refresh tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
