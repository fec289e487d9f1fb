package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wordweave/wordweave/internal/database"
	"github.com/wordweave/wordweave/internal/models"
)

// VerificationTokenRepository handles one-time verification token data access.
// Deletion is the consumption gate: Delete reports ErrNotFound when another
// request already removed the row, which is what makes consume-once hold
// across concurrent stateless instances.
type VerificationTokenRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationTokenRepository(db *database.DB) *VerificationTokenRepository {
	return &VerificationTokenRepository{pool: db.Pool}
}

const verificationTokenColumns = `id, principal_id, token, purpose, expires_at, created_at`

func scanVerificationTokenRow(scanner rowScanner) (*models.VerificationToken, error) {
	var t models.VerificationToken

	err := scanner.Scan(
		&t.ID, &t.PrincipalID, &t.Token, &t.Purpose, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &t, nil
}

func (r *VerificationTokenRepository) Create(ctx context.Context, principalID, token string, purpose models.TokenPurpose, expiresAt time.Time) (*models.VerificationToken, error) {
	query := `
		INSERT INTO verification_tokens (id, principal_id, token, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + verificationTokenColumns

	created, err := scanVerificationTokenRow(r.pool.QueryRow(ctx, query,
		uuid.New().String(), principalID, token, purpose, expiresAt, time.Now(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create verification token: %w", err)
	}

	return created, nil
}

func (r *VerificationTokenRepository) GetByToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	query := `SELECT ` + verificationTokenColumns + ` FROM verification_tokens WHERE token = $1`

	return scanVerificationTokenRow(r.pool.QueryRow(ctx, query, token))
}

// Delete removes a token by id. Returns ErrNotFound when the row was already
// gone, letting callers treat the delete as an atomic claim on the token.
func (r *VerificationTokenRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM verification_tokens WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *VerificationTokenRepository) DeleteByPrincipalAndPurpose(ctx context.Context, principalID string, purpose models.TokenPurpose) error {
	query := `DELETE FROM verification_tokens WHERE principal_id = $1 AND purpose = $2`

	_, err := r.pool.Exec(ctx, query, principalID, purpose)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func (r *VerificationTokenRepository) DeleteAllByPrincipal(ctx context.Context, principalID string) error {
	query := `DELETE FROM verification_tokens WHERE principal_id = $1`

	_, err := r.pool.Exec(ctx, query, principalID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// CleanupExpired deletes expired tokens. Expiry is otherwise evaluated lazily
// on consumption; this keeps the table from accumulating garbage.
func (r *VerificationTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM verification_tokens WHERE expires_at < NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired verification tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
