package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfield/gatepass/internal/domain"
)

type OperatorRepo interface {
	FindActive(ctx context.Context, username, role string) (*domain.Operator, error)
	MarkLogin(ctx context.Context, username string) error
}

type operatorRepo struct {
	pool *pgxpool.Pool
}

func NewOperatorRepo(pool *pgxpool.Pool) OperatorRepo {
	return &operatorRepo{pool: pool}
}

const operatorCols = `username, password_hash, organization, role, is_active, created_at, last_login`

func (r *operatorRepo) FindActive(ctx context.Context, username, role string) (*domain.Operator, error) {
	const q = `SELECT ` + operatorCols + ` FROM users WHERE username = $1 AND role = $2 AND is_active = true`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.Operator
	err := r.pool.QueryRow(ctx, q, username, role).Scan(
		&o.Username, &o.PasswordHash, &o.Organization, &o.Role, &o.IsActive, &o.CreatedAt, &o.LastLogin,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *operatorRepo) MarkLogin(ctx context.Context, username string) error {
	const q = `UPDATE users SET last_login = now() WHERE username = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, username)
	return err
}
