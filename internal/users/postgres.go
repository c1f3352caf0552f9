package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore backs the Store interface with a users table.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens a connection pool against the given URL and
// verifies connectivity before returning.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	const q = `SELECT id, name, wins, losses, premium FROM users WHERE id = $1`

	u := &User{}
	err := s.db.QueryRowContext(ctx, q, id).
		Scan(&u.ID, &u.Name, &u.Wins, &u.Losses, &u.Premium)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %s: %w", id, err)
	}
	return u, nil
}

func (s *PostgresStore) Ensure(ctx context.Context, id, name string) (*User, error) {
	const q = `INSERT INTO users (id, name, wins, losses, premium)
		VALUES ($1, $2, 0, 0, FALSE)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, wins, losses, premium`

	u := &User{}
	err := s.db.QueryRowContext(ctx, q, id, name).
		Scan(&u.ID, &u.Name, &u.Wins, &u.Losses, &u.Premium)
	if err != nil {
		return nil, fmt.Errorf("upserting user %s: %w", id, err)
	}
	return u, nil
}

func (s *PostgresStore) RecordWin(ctx context.Context, id string) error {
	return s.bump(ctx, id, `UPDATE users SET wins = wins + 1 WHERE id = $1`)
}

func (s *PostgresStore) RecordLoss(ctx context.Context, id string) error {
	return s.bump(ctx, id, `UPDATE users SET losses = losses + 1 WHERE id = $1`)
}

func (s *PostgresStore) bump(ctx context.Context, id, q string) error {
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetPremium(ctx context.Context, id string, premium bool) error {
	const q = `UPDATE users SET premium = $2 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, q, id, premium)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
