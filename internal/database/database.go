// Package database persists users and finished game results in Postgres.
// A nil *DB is valid and turns every operation into a no-op, so the server
// runs without a database in development.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

var ErrUserNotFound = errors.New("database: user not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game_results (
	id BIGSERIAL PRIMARY KEY,
	session_code TEXT NOT NULL,
	winner_id UUID,
	cabo_caller_id UUID,
	cabo_successful BOOLEAN NOT NULL DEFAULT FALSE,
	scores JSONB NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// User is one registered account.
type User struct {
	ID           uuid.UUID
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// GameResultRow is one persisted finished game.
type GameResultRow struct {
	SessionCode    string
	WinnerID       uuid.UUID
	CaboCallerID   uuid.UUID
	CaboSuccessful bool
	Scores         map[string]int
}

// DB wraps a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// Connect opens a pool against the given URL and ensures the schema.
func Connect(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &DB{pool: pool, log: logrus.WithField("component", "database")}, nil
}

// Close releases the pool. Safe on a nil receiver.
func (db *DB) Close() {
	if db == nil {
		return
	}
	db.pool.Close()
}

// CreateUser inserts a new account.
func (db *DB) CreateUser(ctx context.Context, name, passwordHash string) (*User, error) {
	u := &User{ID: uuid.New(), Name: name, PasswordHash: passwordHash, CreatedAt: time.Now()}
	if db == nil {
		return u, nil
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO users (id, name, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Name, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUserByName loads an account by name.
func (db *DB) GetUserByName(ctx context.Context, name string) (*User, error) {
	if db == nil {
		return nil, ErrUserNotFound
	}
	var u User
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, password_hash, created_at FROM users WHERE name = $1`, name,
	).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// SaveGameResult records a finished game. Failures are logged, not
// propagated: persistence never blocks game flow.
func (db *DB) SaveGameResult(ctx context.Context, row GameResultRow) {
	if db == nil {
		return
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO game_results (session_code, winner_id, cabo_caller_id, cabo_successful, scores)
		 VALUES ($1, $2, $3, $4, $5)`,
		row.SessionCode, nullableUUID(row.WinnerID), nullableUUID(row.CaboCallerID),
		row.CaboSuccessful, row.Scores,
	)
	if err != nil {
		db.log.WithError(err).WithField("session", row.SessionCode).Error("failed to save game result")
	}
}

func nullableUUID(id uuid.UUID) interface{} {
	if id == uuid.Nil {
		return nil
	}
	return id
}
