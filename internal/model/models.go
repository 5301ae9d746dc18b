// Package model defines the entities shared by the HTTP API, the
// authorization engine and the Telegram bot.
package model

import "time"

// Role is a user's role on a board. Roles are ordered: owner can do
// everything, writer can create and edit content, reader can only read.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleWriter, RoleReader:
		return true
	}
	return false
}

// CanWrite reports whether the role permits content mutation.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleWriter
}

// Status is a goal's lifecycle status. Archived is terminal: goals are
// never deleted, only archived, and archiving is not reversible through
// the normal API.
type Status string

const (
	StatusToDo       Status = "to_do"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone, StatusArchived:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TgUser links a Telegram chat to an account. UserID stays nil until the
// chat redeems a verification code; at most one chat per account.
type TgUser struct {
	ID               int64
	ChatID           int64
	Username         string
	UserID           *int64
	VerificationCode *string
	CreatedAt        time.Time
}

// Verified reports whether the chat has been linked to an account.
func (t *TgUser) Verified() bool {
	return t.UserID != nil
}

type Board struct {
	ID           int64              `json:"id"`
	Title        string             `json:"title"`
	IsDeleted    bool               `json:"is_deleted"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Participants []BoardParticipant `json:"participants,omitempty"`
}

type BoardParticipant struct {
	ID       int64  `json:"id"`
	BoardID  int64  `json:"board_id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type Category struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	BoardID   int64     `json:"board_id"`
	UserID    int64     `json:"user_id"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Goal struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CategoryID  int64      `json:"category_id"`
	UserID      int64      `json:"user_id"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Comment struct {
	ID        int64     `json:"id"`
	GoalID    int64     `json:"goal_id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
