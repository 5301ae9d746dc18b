package db

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/model"
)

const sessionTTL = 30 * 24 * time.Hour

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// CreateUser inserts a new account. The password must already be hashed.
func (s *Store) CreateUser(username, passwordHash, firstName, lastName, email string) (*model.User, error) {
	now := time.Now().UTC()
	res, err := s.Exec(
		`INSERT INTO users (username, password_hash, first_name, last_name, email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		username, passwordHash, firstName, lastName, email, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return &model.User{
		ID: id, Username: username, PasswordHash: passwordHash,
		FirstName: firstName, LastName: lastName, Email: email,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (s *Store) scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(id int64) (*model.User, error) {
	return s.scanUser(s.QueryRow(
		`SELECT id, username, password_hash, first_name, last_name, email, created_at, updated_at
		 FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	return s.scanUser(s.QueryRow(
		`SELECT id, username, password_hash, first_name, last_name, email, created_at, updated_at
		 FROM users WHERE username = ?`, username))
}

// UpdateUser changes the profile fields of an account.
func (s *Store) UpdateUser(id int64, firstName, lastName, email string) error {
	_, err := s.Exec(
		`UPDATE users SET first_name = ?, last_name = ?, email = ?, updated_at = ? WHERE id = ?`,
		firstName, lastName, email, time.Now().UTC(), id,
	)
	return err
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.Exec(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	return err
}

// Sessions

// CreateSession issues a new session token for the user.
func (s *Store) CreateSession(userID int64) (string, error) {
	token := generateToken()
	expires := time.Now().UTC().Add(sessionTTL)
	_, err := s.Exec(
		`INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)`,
		userID, token, expires,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// GetUserBySession resolves a session token to its user, expiring stale
// sessions as a side effect.
func (s *Store) GetUserBySession(token string) (*model.User, error) {
	var userID int64
	var expiresAt time.Time
	err := s.QueryRow(
		`SELECT user_id, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if time.Now().After(expiresAt) {
		s.Exec(`DELETE FROM sessions WHERE token = ?`, token)
		return nil, access.ErrNotFound
	}
	return s.GetUserByID(userID)
}

func (s *Store) DeleteSession(token string) {
	s.Exec(`DELETE FROM sessions WHERE token = ?`, token)
}
