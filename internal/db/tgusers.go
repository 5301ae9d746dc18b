package db

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vmalykh/goalboard/internal/model"
)

// GetOrCreateTgUser fetches the chat identity for chatID, creating an
// unverified one on first contact. An existing account link is never
// touched here.
func (s *Store) GetOrCreateTgUser(chatID int64, username string) (*model.TgUser, bool, error) {
	tu, err := s.getTgUserByChatID(chatID)
	if err == nil {
		return tu, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	now := time.Now().UTC()
	res, err := s.Exec(
		`INSERT INTO tg_users (chat_id, username, created_at) VALUES (?, ?, ?)`,
		chatID, username, now,
	)
	if err != nil {
		// Concurrent poller may have inserted the same chat first.
		if tu, lookupErr := s.getTgUserByChatID(chatID); lookupErr == nil {
			return tu, false, nil
		}
		return nil, false, fmt.Errorf("insert tg user: %w", err)
	}
	id, _ := res.LastInsertId()
	return &model.TgUser{ID: id, ChatID: chatID, Username: username, CreatedAt: now}, true, nil
}

func (s *Store) getTgUserByChatID(chatID int64) (*model.TgUser, error) {
	var tu model.TgUser
	err := s.QueryRow(
		`SELECT id, chat_id, username, user_id, verification_code, created_at
		 FROM tg_users WHERE chat_id = ?`, chatID,
	).Scan(&tu.ID, &tu.ChatID, &tu.Username, &tu.UserID, &tu.VerificationCode, &tu.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &tu, nil
}

// IssueVerificationCode stores a fresh random code on the chat identity,
// replacing any previous one, and returns it for delivery.
func (s *Store) IssueVerificationCode(tgUserID int64) (string, error) {
	b := make([]byte, 16)
	rand.Read(b)
	code := hex.EncodeToString(b)

	_, err := s.Exec(
		`UPDATE tg_users SET verification_code = ? WHERE id = ?`,
		code, tgUserID,
	)
	if err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return code, nil
}

// ConsumeVerificationCode links userID to whichever chat identity holds
// the exact code and clears it. A stale, reused or unknown code simply
// returns false so nothing about existing codes can be probed.
func (s *Store) ConsumeVerificationCode(code string, userID int64) (bool, error) {
	if code == "" {
		return false, nil
	}
	res, err := s.Exec(
		`UPDATE tg_users SET user_id = ?, verification_code = NULL WHERE verification_code = ?`,
		userID, code,
	)
	if err != nil {
		// Unique index on user_id: the account is already linked to
		// some chat. Indistinguishable from a bad code to the caller.
		return false, nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
