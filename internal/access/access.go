// Package access implements board-scoped authorization: role resolution
// through the resource -> category -> board chain and the error taxonomy
// shared by the HTTP handlers and the bot.
//
// A caller with no membership on a board is told the resource does not
// exist rather than that access is denied, so that board contents are
// not enumerable by outsiders. Forbidden is reserved for members whose
// role is insufficient.
package access

import (
	"errors"

	"github.com/vmalykh/goalboard/internal/model"
)

var (
	// ErrNotFound covers both a genuinely absent resource and a
	// resource on a board the caller has no membership on.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means membership exists but the role is too weak.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation marks malformed or rejected input.
	ErrValidation = errors.New("validation failed")
)

// RoleSource resolves a user's role on a board. *db.Store satisfies it.
type RoleSource interface {
	RoleOf(userID, boardID int64) (model.Role, bool, error)
}

// Guard gates operations against board membership roles.
type Guard struct {
	roles RoleSource
}

func NewGuard(roles RoleSource) *Guard {
	return &Guard{roles: roles}
}

// CheckRead allows any membership on the board. No membership reads as
// ErrNotFound.
func (g *Guard) CheckRead(userID, boardID int64) error {
	_, ok, err := g.roles.RoleOf(userID, boardID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// CheckWrite requires an owner or writer role on the board. No
// membership reads as ErrNotFound, a reader role as ErrForbidden.
func (g *Guard) CheckWrite(userID, boardID int64) error {
	role, ok, err := g.roles.RoleOf(userID, boardID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if !role.CanWrite() {
		return ErrForbidden
	}
	return nil
}

// CheckOwner requires the owner role. Board-level mutations (rename,
// participant changes, delete) go through here.
func (g *Guard) CheckOwner(userID, boardID int64) error {
	role, ok, err := g.roles.RoleOf(userID, boardID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if role != model.RoleOwner {
		return ErrForbidden
	}
	return nil
}

// CheckAuthor gates comment mutation: only the author may edit or
// delete, anyone who can read the board may look.
func (g *Guard) CheckAuthor(userID, authorID int64) error {
	if userID != authorID {
		return ErrForbidden
	}
	return nil
}
