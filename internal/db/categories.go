package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/model"
)

func txRoleOf(tx *sql.Tx, userID, boardID int64) (model.Role, bool, error) {
	var role model.Role
	err := tx.QueryRow(
		`SELECT role FROM board_participants WHERE user_id = ? AND board_id = ?`,
		userID, boardID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return role, true, nil
}

// CreateCategory inserts a category after checking, inside the same
// transaction, that the board is alive and the creator holds an owner
// or writer role on it.
func (s *Store) CreateCategory(title string, boardID, userID int64) (*model.Category, error) {
	tx, err := s.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var deleted bool
	err = tx.QueryRow(`SELECT is_deleted FROM boards WHERE id = ?`, boardID).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup board: %w", err)
	}

	role, ok, err := txRoleOf(tx, userID, boardID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, access.ErrNotFound
	}
	if deleted {
		return nil, fmt.Errorf("%w: board is deleted", access.ErrValidation)
	}
	if !role.CanWrite() {
		return nil, access.ErrForbidden
	}

	now := time.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO categories (title, board_id, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		title, boardID, userID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, _ := res.LastInsertId()

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.Category{ID: id, Title: title, BoardID: boardID, UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
}

// ListCategories returns the non-deleted categories on boards the user
// participates in, optionally restricted to one board, ordered by title.
func (s *Store) ListCategories(userID int64, boardID *int64) ([]model.Category, error) {
	q := `SELECT c.id, c.title, c.board_id, c.user_id, c.is_deleted, c.created_at, c.updated_at
		 FROM categories c
		 JOIN board_participants p ON p.board_id = c.board_id
		 WHERE p.user_id = ? AND c.is_deleted = 0`
	args := []any{userID}
	if boardID != nil {
		q += ` AND c.board_id = ?`
		args = append(args, *boardID)
	}
	q += ` ORDER BY c.title`

	return s.queryCategories(q, args...)
}

// ListWritableCategories returns the non-deleted categories the user
// may create goals in: boards where they are owner or writer. Ordered
// by id for the bot listing.
func (s *Store) ListWritableCategories(userID int64) ([]model.Category, error) {
	return s.queryCategories(
		`SELECT c.id, c.title, c.board_id, c.user_id, c.is_deleted, c.created_at, c.updated_at
		 FROM categories c
		 JOIN board_participants p ON p.board_id = c.board_id
		 WHERE p.user_id = ? AND p.role IN (?, ?) AND c.is_deleted = 0
		 ORDER BY c.id`,
		userID, model.RoleOwner, model.RoleWriter)
}

func (s *Store) queryCategories(q string, args ...any) ([]model.Category, error) {
	rows, err := s.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.BoardID, &c.UserID, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetCategory fetches a non-deleted category. Membership checks are the
// caller's job.
func (s *Store) GetCategory(id int64) (*model.Category, error) {
	var c model.Category
	err := s.QueryRow(
		`SELECT id, title, board_id, user_id, is_deleted, created_at, updated_at
		 FROM categories WHERE id = ? AND is_deleted = 0`, id,
	).Scan(&c.ID, &c.Title, &c.BoardID, &c.UserID, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// UpdateCategory renames a category.
func (s *Store) UpdateCategory(id int64, title string) error {
	_, err := s.Exec(
		`UPDATE categories SET title = ?, updated_at = ? WHERE id = ? AND is_deleted = 0`,
		title, time.Now().UTC(), id,
	)
	return err
}
