package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"studysync/internal/domain/user"
)

const uniqueViolation = "23505"

func NewUserRepository(pool *pgxpool.Pool, log *slog.Logger) *UserRepository {
	return &UserRepository{
		pool: pool,
		log:  log.With("component", "user_repository"),
	}
}

type UserRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func (r *UserRepository) Create(ctx context.Context, login, passwordHash string) (int, error) {
	var userID int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash).Scan(&userID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return 0, user.ErrUserExists
	}
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return userID, nil
}

func (r *UserRepository) FindByLogin(ctx context.Context, login string) (user.User, error) {
	var u user.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash FROM users WHERE login = $1`, login).
		Scan(&u.ID, &u.Login, &u.Password)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, user.ErrUserNotFound
	}
	if err != nil {
		return u, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}
