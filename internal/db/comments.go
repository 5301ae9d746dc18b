package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/model"
)

// CreateComment inserts a comment on a goal.
func (s *Store) CreateComment(goalID, userID int64, text string) (*model.Comment, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text required", access.ErrValidation)
	}
	now := time.Now().UTC()
	res, err := s.Exec(
		`INSERT INTO comments (goal_id, user_id, text, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		goalID, userID, text, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	id, _ := res.LastInsertId()
	return &model.Comment{ID: id, GoalID: goalID, UserID: userID, Text: text, CreatedAt: now, UpdatedAt: now}, nil
}

// ListComments returns a goal's comments, newest first.
func (s *Store) ListComments(goalID int64) ([]model.Comment, error) {
	rows, err := s.Query(
		`SELECT id, goal_id, user_id, text, created_at, updated_at
		 FROM comments WHERE goal_id = ?
		 ORDER BY created_at DESC, id DESC`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.GoalID, &c.UserID, &c.Text, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Store) GetComment(id int64) (*model.Comment, error) {
	var c model.Comment
	err := s.QueryRow(
		`SELECT id, goal_id, user_id, text, created_at, updated_at FROM comments WHERE id = ?`, id,
	).Scan(&c.ID, &c.GoalID, &c.UserID, &c.Text, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &c, nil
}

func (s *Store) UpdateComment(id int64, text string) error {
	if text == "" {
		return fmt.Errorf("%w: text required", access.ErrValidation)
	}
	_, err := s.Exec(
		`UPDATE comments SET text = ?, updated_at = ? WHERE id = ?`,
		text, time.Now().UTC(), id,
	)
	return err
}

// DeleteComment removes a comment. Comments are the one entity that is
// physically deleted.
func (s *Store) DeleteComment(id int64) error {
	_, err := s.Exec(`DELETE FROM comments WHERE id = ?`, id)
	return err
}
