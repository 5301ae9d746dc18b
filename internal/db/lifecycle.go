package db

import (
	"fmt"

	"github.com/vmalykh/goalboard/internal/model"
)

// Cascading soft-delete. Boards and categories are never physically
// removed and goals are never deleted at all, only archived. Each
// cascade runs inside a single transaction so a board can never be
// observed deleted while its categories are still alive. All three are
// idempotent: flagging an already-deleted row again changes nothing.

// DeleteBoard soft-deletes the board, soft-deletes every category under
// it and archives every goal reachable through those categories.
func (s *Store) DeleteBoard(boardID int64) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE boards SET is_deleted = 1 WHERE id = ?`, boardID,
	); err != nil {
		return fmt.Errorf("soft-delete board: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE categories SET is_deleted = 1 WHERE board_id = ?`, boardID,
	); err != nil {
		return fmt.Errorf("soft-delete categories: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE goals SET status = ? WHERE category_id IN (SELECT id FROM categories WHERE board_id = ?)`,
		model.StatusArchived, boardID,
	); err != nil {
		return fmt.Errorf("archive goals: %w", err)
	}

	return tx.Commit()
}

// DeleteCategory soft-deletes the category and archives its goals.
func (s *Store) DeleteCategory(categoryID int64) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE categories SET is_deleted = 1 WHERE id = ?`, categoryID,
	); err != nil {
		return fmt.Errorf("soft-delete category: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE goals SET status = ? WHERE category_id = ?`,
		model.StatusArchived, categoryID,
	); err != nil {
		return fmt.Errorf("archive goals: %w", err)
	}

	return tx.Commit()
}

// DeleteGoal archives the goal. The transition is one-way: nothing in
// the API moves a goal out of archived.
func (s *Store) DeleteGoal(goalID int64) error {
	_, err := s.Exec(
		`UPDATE goals SET status = ? WHERE id = ?`,
		model.StatusArchived, goalID,
	)
	if err != nil {
		return fmt.Errorf("archive goal: %w", err)
	}
	return nil
}
