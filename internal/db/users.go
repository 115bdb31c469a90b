package db

import (
	"context"
	"errors"
	"strings"

	"github.com/authentic/backend/internal/model"
	"github.com/jackc/pgx/v5"
)

func (db *Postgres) EnsureAuthSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT 'local',
			google_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS otp_challenges (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			code CHAR(6) NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			consumed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL
		)
		`,
		`CREATE INDEX IF NOT EXISTS otp_challenges_user_id_consumed_idx ON otp_challenges(user_id, consumed)`,
		`CREATE INDEX IF NOT EXISTS otp_challenges_code_idx ON otp_challenges(code) WHERE NOT consumed`,
		`
		CREATE TABLE IF NOT EXISTS refresh_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			replaced_by_hash TEXT NOT NULL DEFAULT '',
			is_valid BOOLEAN NOT NULL DEFAULT TRUE,
			device_info TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS refresh_sessions_user_id_idx ON refresh_sessions(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	query := `
		INSERT INTO users (id, email, name, password_hash, provider, google_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, email, name, password_hash, provider, google_id, created_at, updated_at
	`
	var created model.User
	err := db.Pool.QueryRow(ctx, query,
		user.ID,
		strings.ToLower(user.Email),
		user.Name,
		user.PasswordHash,
		user.Provider,
		user.GoogleID,
	).Scan(
		&created.ID,
		&created.Email,
		&created.Name,
		&created.PasswordHash,
		&created.Provider,
		&created.GoogleID,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, name, password_hash, provider, google_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Provider,
		&user.GoogleID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	query := `
		SELECT id, email, name, password_hash, provider, google_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Provider,
		&user.GoogleID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) LinkGoogleAccount(ctx context.Context, userID, googleID string) (*model.User, error) {
	query := `
		UPDATE users
		SET provider = 'google', google_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, name, password_hash, provider, google_id, created_at, updated_at
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, userID, googleID).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Provider,
		&user.GoogleID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IsNoRows reports whether err means the lookup matched nothing, as opposed
// to the store being unreachable. Callers map the former to auth sentinels
// and propagate the latter.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
