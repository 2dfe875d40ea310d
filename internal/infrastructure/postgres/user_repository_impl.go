package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breadjournal/server/internal/domain/entity"
	"github.com/breadjournal/server/internal/domain/repository"
)

const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, display_name, verified, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.Verified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Create(u *entity.User) error {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, display_name, verified)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Email, u.PasswordHash, u.DisplayName)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		// The unique constraints are the real enforcement point for
		// concurrent signups; losers must surface the same conflict
		// outcome as the pre-check path.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case "users_username_key":
				return repository.ErrDuplicateUsername
			case "users_email_key":
				return repository.ErrDuplicateEmail
			}
			return repository.ErrDuplicateUsername
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(id string) (*entity.User, error) {
	row := r.pool.QueryRow(context.Background(), `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(email string) (*entity.User, error) {
	row := r.pool.QueryRow(context.Background(), `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByUsernameOrEmail(usernameOrEmail string) (*entity.User, error) {
	row := r.pool.QueryRow(context.Background(), `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 OR email = $1
	`, usernameOrEmail)
	return scanUser(row)
}

func (r *UserRepository) FindConflict(username, email string) (*entity.User, error) {
	row := r.pool.QueryRow(context.Background(), `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 OR email = $2
		LIMIT 1
	`, username, email)
	return scanUser(row)
}

func (r *UserRepository) SetVerified(email string) (*entity.User, error) {
	row := r.pool.QueryRow(context.Background(), `
		UPDATE users
		SET verified = TRUE, updated_at = now()
		WHERE email = $1
		RETURNING `+userColumns+`
	`, email)
	return scanUser(row)
}

func (r *UserRepository) UpdatePasswordByEmail(email, passwordHash string) error {
	_, err := r.pool.Exec(context.Background(), `
		UPDATE users
		SET password_hash = $1, updated_at = now()
		WHERE email = $2
	`, passwordHash, email)
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)
