// Package session keeps the client's tokens between runs in a local SQLite
// key/value table.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/buildingkeeper/internal/client/session/migrations"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
)

const (
	keyEmail   = "email"
	keyAccess  = "access_token"
	keyRefresh = "refresh_token"
)

// Session is what the client remembers about the signed-in user.
type Session struct {
	Email        string
	AccessToken  string
	RefreshToken string
}

// Empty reports whether no one is signed in.
func (s Session) Empty() bool {
	return s.RefreshToken == "" && s.AccessToken == ""
}

type Store struct {
	db *sql.DB
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the session database at dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func get(ctx context.Context, db dbx.DBTX, key string) (string, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return string(value), nil
}

func set(ctx context.Context, db dbx.DBTX, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, []byte(value))
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// Load returns the stored session; a fresh database yields an empty one.
func (s *Store) Load(ctx context.Context) (Session, error) {
	var (
		sess Session
		err  error
	)
	if sess.Email, err = get(ctx, s.db, keyEmail); err != nil {
		return Session{}, err
	}
	if sess.AccessToken, err = get(ctx, s.db, keyAccess); err != nil {
		return Session{}, err
	}
	if sess.RefreshToken, err = get(ctx, s.db, keyRefresh); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Save replaces the stored session atomically.
func (s *Store) Save(ctx context.Context, sess Session) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := set(ctx, tx, keyEmail, sess.Email); err != nil {
			return err
		}
		if err := set(ctx, tx, keyAccess, sess.AccessToken); err != nil {
			return err
		}
		return set(ctx, tx, keyRefresh, sess.RefreshToken)
	})
}

// Clear forgets the session.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}
