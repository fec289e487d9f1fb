package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wordweave/wordweave/internal/database"
	"github.com/wordweave/wordweave/internal/models"
)

// PrincipalRepository handles authentication-method data access
type PrincipalRepository struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepository(db *database.DB) *PrincipalRepository {
	return &PrincipalRepository{pool: db.Pool}
}

const principalColumns = `id, user_id, provider, provider_user_id, password_hash, email, email_verified, created_at`

func scanPrincipalRow(scanner rowScanner) (*models.Principal, error) {
	var p models.Principal
	var providerUserID, passwordHash *string

	err := scanner.Scan(
		&p.ID, &p.UserID, &p.Provider, &providerUserID,
		&passwordHash, &p.Email, &p.EmailVerified, &p.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if providerUserID != nil {
		p.ProviderUserID = *providerUserID
	}
	if passwordHash != nil {
		p.PasswordHash = *passwordHash
	}

	return &p, nil
}

func scanPrincipalRows(rows pgx.Rows) ([]*models.Principal, error) {
	defer rows.Close()

	principals := make([]*models.Principal, 0)

	for rows.Next() {
		p, err := scanPrincipalRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}
		principals = append(principals, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating principal rows: %w", err)
	}

	return principals, nil
}

func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`

	return scanPrincipalRow(r.pool.QueryRow(ctx, query, id))
}

func (r *PrincipalRepository) ListByUser(ctx context.Context, userID string) ([]*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query principals: %w", err)
	}

	return scanPrincipalRows(rows)
}

// GetByProviderID looks up a provider principal by its provider-scoped user id.
func (r *PrincipalRepository) GetByProviderID(ctx context.Context, provider models.ProviderKind, providerUserID string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE provider = $1 AND provider_user_id = $2`

	return scanPrincipalRow(r.pool.QueryRow(ctx, query, provider, providerUserID))
}

// GetLocalByEmail looks up a local principal by the email it was created with.
func (r *PrincipalRepository) GetLocalByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE provider = $1 AND email = $2`

	return scanPrincipalRow(r.pool.QueryRow(ctx, query, models.ProviderLocal, email))
}

func (r *PrincipalRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now()

	var providerUserID, passwordHash *string
	if p.ProviderUserID != "" {
		providerUserID = &p.ProviderUserID
	}
	if p.PasswordHash != "" {
		passwordHash = &p.PasswordHash
	}

	query := `
		INSERT INTO principals (id, user_id, provider, provider_user_id, password_hash, email, email_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + principalColumns

	return scanPrincipalRow(r.pool.QueryRow(ctx, query,
		p.ID, p.UserID, p.Provider, providerUserID, passwordHash,
		p.Email, p.EmailVerified, p.CreatedAt,
	))
}

func (r *PrincipalRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE principals SET password_hash = $1 WHERE id = $2 AND provider = $3`

	result, err := r.pool.Exec(ctx, query, passwordHash, id, models.ProviderLocal)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	query := `UPDATE principals SET email_verified = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, verified, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM principals WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository) DeleteAllByUser(ctx context.Context, userID string) error {
	query := `DELETE FROM principals WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}
