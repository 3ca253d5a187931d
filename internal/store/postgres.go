// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and user directory queries.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// PostgresStore is the durable user directory.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and pings it before returning.
// Call once at startup; the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings the pool.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetUserByUID fetches the user with the given provider-qualified UID.
// Returns ErrUserNotFound if no row matches.
func (s *PostgresStore) GetUserByUID(ctx context.Context, uid string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, uid, display_name, avatar_url, created_at, updated_at, last_sign_in_at
		 FROM users WHERE uid = $1`, uid,
	).Scan(&u.ID, &u.UID, &u.DisplayName, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt, &u.LastSignInAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user. The caller generates the UUIDv7.
// Returns ErrUserExists on a UID conflict.
func (s *PostgresStore) CreateUser(ctx context.Context, id uuid.UUID, uid string, displayName, avatarURL *string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, uid, display_name, avatar_url, last_sign_in_at)
		 VALUES ($1, $2, $3, $4, now())`,
		id, uid, displayName, avatarURL)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// UpdateUserProfile overwrites profile fields and stamps last_sign_in_at.
// Returns ErrUserNotFound if no row matches.
func (s *PostgresStore) UpdateUserProfile(ctx context.Context, uid string, displayName, avatarURL *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET display_name = $2, avatar_url = $3, updated_at = now(), last_sign_in_at = now()
		 WHERE uid = $1`,
		uid, displayName, avatarURL)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
