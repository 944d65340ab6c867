// Package storage provides SQLite persistence for credentials and the
// upload registry.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warraq/warraq/internal/models"
)

// ErrUserExists is returned by AddUser when the username is already taken.
var ErrUserExists = errors.New("username already exists")

// ErrInvalidCredentials is returned by Authenticate on a bad username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SQLiteStore persists credential records and upload records in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS uploads (
		filename TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		uploaded_at TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// AddUser creates a credential record. The password is stored as a one-way
// hash. Returns ErrUserExists if the username is taken.
func (s *SQLiteStore) AddUser(ctx context.Context, username, password, role string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if exists > 0 {
		return ErrUserExists
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, HashPassword(password), role,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Authenticate verifies username/password and returns the user's role.
// Returns ErrInvalidCredentials when the user does not exist or the
// password does not match.
func (s *SQLiteStore) Authenticate(ctx context.Context, username, password string) (string, error) {
	var storedHash, role string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash, role FROM users WHERE username = ?`, username,
	).Scan(&storedHash, &role)
	if err == sql.ErrNoRows {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("query user: %w", err)
	}
	if storedHash != HashPassword(password) {
		return "", ErrInvalidCredentials
	}
	return role, nil
}

// ListUsers returns all credential records without password hashes,
// ordered by username.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]models.UserInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, role FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	users := make([]models.UserInfo, 0)
	for rows.Next() {
		var u models.UserInfo
		if err := rows.Scan(&u.Username, &u.Role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// RecordUpload upserts an upload record; re-uploading a filename overwrites
// its entry, mirroring the overwrite semantics of the upload directory.
func (s *SQLiteStore) RecordUpload(ctx context.Context, filename string, size int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (filename, size, uploaded_at) VALUES (?, ?, ?)
		 ON CONFLICT(filename) DO UPDATE SET size = excluded.size, uploaded_at = excluded.uploaded_at`,
		filename, size, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// ListUploads returns all upload records, most recent first.
func (s *SQLiteStore) ListUploads(ctx context.Context) ([]models.UploadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, size, uploaded_at FROM uploads ORDER BY uploaded_at DESC, filename`)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()
	uploads := make([]models.UploadRecord, 0)
	for rows.Next() {
		var u models.UploadRecord
		if err := rows.Scan(&u.Filename, &u.Size, &u.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
