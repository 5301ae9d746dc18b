package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/model"
)

// CreateGoal inserts a goal after re-validating, inside one
// transaction, that the category is alive and the creator still holds
// an owner or writer role on its board. Both the HTTP handler and the
// bot's draft commit go through here, so a role revoked between
// category selection and title entry can never produce a goal.
func (s *Store) CreateGoal(userID, categoryID int64, title, description string, priority model.Priority, due *time.Time) (*model.Goal, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title required", access.ErrValidation)
	}
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: invalid priority %q", access.ErrValidation, priority)
	}

	tx, err := s.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var boardID int64
	var catDeleted bool
	err = tx.QueryRow(
		`SELECT board_id, is_deleted FROM categories WHERE id = ?`, categoryID,
	).Scan(&boardID, &catDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup category: %w", err)
	}
	if catDeleted {
		return nil, access.ErrNotFound
	}

	role, ok, err := txRoleOf(tx, userID, boardID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, access.ErrNotFound
	}
	if !role.CanWrite() {
		return nil, access.ErrForbidden
	}

	now := time.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO goals (title, description, category_id, user_id, status, priority, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		title, description, categoryID, userID, model.StatusToDo, priority, due, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	id, _ := res.LastInsertId()

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.Goal{
		ID: id, Title: title, Description: description,
		CategoryID: categoryID, UserID: userID,
		Status: model.StatusToDo, Priority: priority, DueDate: due,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

// GoalFilter narrows ListGoals. Nil fields are ignored.
type GoalFilter struct {
	CategoryID *int64
	Status     *model.Status
	Priority   *model.Priority
}

// ListGoals returns the non-archived goals on boards the user
// participates in. Archived goals never show up here regardless of the
// filter, which keeps the soft-delete cascade invisible to every list
// path.
func (s *Store) ListGoals(userID int64, f GoalFilter) ([]model.Goal, error) {
	q := `SELECT g.id, g.title, g.description, g.category_id, g.user_id, g.status, g.priority, g.due_date, g.created_at, g.updated_at
		 FROM goals g
		 JOIN categories c ON c.id = g.category_id
		 JOIN board_participants p ON p.board_id = c.board_id
		 WHERE p.user_id = ? AND g.status != ?`
	args := []any{userID, model.StatusArchived}
	if f.CategoryID != nil {
		q += ` AND g.category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.Status != nil {
		q += ` AND g.status = ?`
		args = append(args, *f.Status)
	}
	if f.Priority != nil {
		q += ` AND g.priority = ?`
		args = append(args, *f.Priority)
	}
	q += ` ORDER BY g.title`

	return s.queryGoals(q, args...)
}

// ListGoalsByOwner returns the sender's own non-archived goals in
// creation order, for the bot's /goals command.
func (s *Store) ListGoalsByOwner(userID int64) ([]model.Goal, error) {
	return s.queryGoals(
		`SELECT id, title, description, category_id, user_id, status, priority, due_date, created_at, updated_at
		 FROM goals WHERE user_id = ? AND status != ?
		 ORDER BY created_at, id`,
		userID, model.StatusArchived)
}

func (s *Store) queryGoals(q string, args ...any) ([]model.Goal, error) {
	rows, err := s.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		var g model.Goal
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &g.CategoryID, &g.UserID, &g.Status, &g.Priority, &g.DueDate, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// GetGoal fetches a non-archived goal. Membership checks are the
// caller's job.
func (s *Store) GetGoal(id int64) (*model.Goal, error) {
	var g model.Goal
	err := s.QueryRow(
		`SELECT id, title, description, category_id, user_id, status, priority, due_date, created_at, updated_at
		 FROM goals WHERE id = ? AND status != ?`, id, model.StatusArchived,
	).Scan(&g.ID, &g.Title, &g.Description, &g.CategoryID, &g.UserID, &g.Status, &g.Priority, &g.DueDate, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &g, nil
}

// UpdateGoal rewrites a goal's mutable fields. The goal keeps its
// category and owner for life.
func (s *Store) UpdateGoal(id int64, title, description string, status model.Status, priority model.Priority, due *time.Time) error {
	if title == "" {
		return fmt.Errorf("%w: title required", access.ErrValidation)
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", access.ErrValidation, status)
	}
	if !priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", access.ErrValidation, priority)
	}
	_, err := s.Exec(
		`UPDATE goals SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
		 WHERE id = ? AND status != ?`,
		title, description, status, priority, due, time.Now().UTC(), id, model.StatusArchived,
	)
	return err
}
