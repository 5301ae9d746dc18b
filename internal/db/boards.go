package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/model"
)

// RoleOf resolves the user's role on a board. The second return is
// false when no membership row exists.
func (s *Store) RoleOf(userID, boardID int64) (model.Role, bool, error) {
	var role model.Role
	err := s.QueryRow(
		`SELECT role FROM board_participants WHERE user_id = ? AND board_id = ?`,
		userID, boardID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup role: %w", err)
	}
	return role, true, nil
}

// CreateBoard inserts a board and its owner participant in one
// transaction.
func (s *Store) CreateBoard(title string, ownerID int64) (*model.Board, error) {
	tx, err := s.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO boards (title, created_at, updated_at) VALUES (?, ?, ?)`,
		title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert board: %w", err)
	}
	boardID, _ := res.LastInsertId()

	if _, err := tx.Exec(
		`INSERT INTO board_participants (board_id, user_id, role) VALUES (?, ?, ?)`,
		boardID, ownerID, model.RoleOwner,
	); err != nil {
		return nil, fmt.Errorf("insert owner participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.Board{ID: boardID, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// ListBoards returns the non-deleted boards the user participates in,
// ordered by title.
func (s *Store) ListBoards(userID int64) ([]model.Board, error) {
	rows, err := s.Query(
		`SELECT b.id, b.title, b.is_deleted, b.created_at, b.updated_at
		 FROM boards b
		 JOIN board_participants p ON p.board_id = b.id
		 WHERE p.user_id = ? AND b.is_deleted = 0
		 ORDER BY b.title`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []model.Board
	for rows.Next() {
		var b model.Board
		if err := rows.Scan(&b.ID, &b.Title, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// GetBoard fetches a non-deleted board with its participants.
func (s *Store) GetBoard(id int64) (*model.Board, error) {
	var b model.Board
	err := s.QueryRow(
		`SELECT id, title, is_deleted, created_at, updated_at
		 FROM boards WHERE id = ? AND is_deleted = 0`, id,
	).Scan(&b.ID, &b.Title, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}

	parts, err := s.boardParticipants(id)
	if err != nil {
		return nil, err
	}
	b.Participants = parts
	return &b, nil
}

func (s *Store) boardParticipants(boardID int64) ([]model.BoardParticipant, error) {
	rows, err := s.Query(
		`SELECT p.id, p.board_id, p.user_id, u.username, p.role
		 FROM board_participants p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.board_id = ?
		 ORDER BY p.id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []model.BoardParticipant
	for rows.Next() {
		var p model.BoardParticipant
		if err := rows.Scan(&p.ID, &p.BoardID, &p.UserID, &p.Username, &p.Role); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// ParticipantChange names a user (by username) and the role they should
// hold after a board update.
type ParticipantChange struct {
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

// UpdateBoard renames the board and replaces its participant set in one
// transaction. The owner's own row is immutable: it can be neither
// removed nor demoted, and owner is not a grantable role here.
func (s *Store) UpdateBoard(boardID, ownerID int64, title string, participants []ParticipantChange) error {
	for _, pc := range participants {
		if pc.Role != model.RoleWriter && pc.Role != model.RoleReader {
			return fmt.Errorf("%w: role %q is not grantable", access.ErrValidation, pc.Role)
		}
	}

	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if title != "" {
		if _, err := tx.Exec(
			`UPDATE boards SET title = ?, updated_at = ? WHERE id = ?`,
			title, now, boardID,
		); err != nil {
			return fmt.Errorf("update board title: %w", err)
		}
	}

	if _, err := tx.Exec(
		`DELETE FROM board_participants WHERE board_id = ? AND user_id != ?`,
		boardID, ownerID,
	); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}

	for _, pc := range participants {
		var userID int64
		err := tx.QueryRow(`SELECT id FROM users WHERE username = ?`, pc.Username).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: unknown user %q", access.ErrValidation, pc.Username)
		}
		if err != nil {
			return fmt.Errorf("lookup participant: %w", err)
		}
		if userID == ownerID {
			continue
		}
		if _, err := tx.Exec(
			`INSERT INTO board_participants (board_id, user_id, role) VALUES (?, ?, ?)`,
			boardID, userID, pc.Role,
		); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	return tx.Commit()
}
