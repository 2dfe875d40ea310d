package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breadjournal/server/internal/domain/entity"
	"github.com/breadjournal/server/internal/domain/repository"
)

type CodeRepository struct {
	pool *pgxpool.Pool
}

func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

func scanCode(row pgx.Row) (*entity.VerificationCode, error) {
	c := &entity.VerificationCode{}
	if err := row.Scan(&c.ID, &c.Email, &c.Code, &c.Purpose, &c.CreatedAt, &c.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CodeRepository) Create(c *entity.VerificationCode) error {
	row := r.pool.QueryRow(context.Background(), `
		INSERT INTO verification_codes (email, code, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, c.Email, c.Code, c.Purpose, c.ExpiresAt)
	return row.Scan(&c.ID, &c.CreatedAt)
}

func (r *CodeRepository) Latest(email string, purpose entity.Purpose) (*entity.VerificationCode, error) {
	row := r.pool.QueryRow(context.Background(), `
		SELECT id, email, code, purpose, created_at, expires_at
		FROM verification_codes
		WHERE email = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, email, purpose)
	return scanCode(row)
}

func (r *CodeRepository) LatestUnexpired(email string, purpose entity.Purpose) (*entity.VerificationCode, error) {
	row := r.pool.QueryRow(context.Background(), `
		SELECT id, email, code, purpose, created_at, expires_at
		FROM verification_codes
		WHERE email = $1 AND purpose = $2 AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1
	`, email, purpose)
	return scanCode(row)
}

func (r *CodeRepository) DeleteAll(email string, purpose entity.Purpose) error {
	_, err := r.pool.Exec(context.Background(), `
		DELETE FROM verification_codes
		WHERE email = $1 AND purpose = $2
	`, email, purpose)
	return err
}

var _ repository.CodeRepository = (*CodeRepository)(nil)
