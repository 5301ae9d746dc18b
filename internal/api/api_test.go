package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmalykh/goalboard/internal/db"
	"github.com/vmalykh/goalboard/internal/model"
)

func setupAPI(t *testing.T) (*http.ServeMux, *db.Store) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mux := http.NewServeMux()
	New(store).Register(mux)
	return mux, store
}

func do(t *testing.T, mux *http.ServeMux, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

// signupAndLogin registers a user and returns a session token.
func signupAndLogin(t *testing.T, mux *http.ServeMux, username string) string {
	t.Helper()
	w := do(t, mux, "POST", "/api/auth/signup", "", map[string]string{
		"username": username, "password": "sw0rdfish1", "password_repeat": "sw0rdfish1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, mux, "POST", "/api/auth/login", "", map[string]string{
		"username": username, "password": "sw0rdfish1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		Token string `json:"token"`
	}](t, w)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestAuthFlow(t *testing.T) {
	mux, _ := setupAPI(t)

	w := do(t, mux, "POST", "/api/auth/signup", "", map[string]string{
		"username": "alice", "password": "sw0rdfish1", "password_repeat": "different",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	token := signupAndLogin(t, mux, "alice")

	w = do(t, mux, "POST", "/api/auth/signup", "", map[string]string{
		"username": "alice", "password": "sw0rdfish1", "password_repeat": "sw0rdfish1",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, "duplicate username")

	w = do(t, mux, "POST", "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, mux, "GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[model.User](t, w)
	require.Equal(t, "alice", me.Username)

	w = do(t, mux, "GET", "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, mux, "PATCH", "/api/auth/password", token, map[string]string{
		"old_password": "sw0rdfish1", "new_password": "n3wpassword",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, mux, "POST", "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "n3wpassword",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBoardVisibilityAndRoles(t *testing.T) {
	mux, _ := setupAPI(t)
	alice := signupAndLogin(t, mux, "alice")
	bob := signupAndLogin(t, mux, "bob")

	w := do(t, mux, "POST", "/api/boards", alice, map[string]string{"title": "work"})
	require.Equal(t, http.StatusCreated, w.Code)
	board := decode[model.Board](t, w)

	boardPath := fmt.Sprintf("/api/boards/%d", board.ID)

	// Non-members get 404, never 403: the board's existence is hidden.
	w = do(t, mux, "GET", boardPath, bob, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, mux, "DELETE", boardPath, bob, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, mux, "PUT", boardPath, alice, map[string]any{
		"title":        "work",
		"participants": []map[string]string{{"username": "bob", "role": "reader"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A reader can see the board but not mutate it.
	w = do(t, mux, "GET", boardPath, bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, mux, "PUT", boardPath, bob, map[string]any{"title": "mine now"})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, mux, "DELETE", boardPath, bob, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, mux, "DELETE", boardPath, alice, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, mux, "GET", boardPath, alice, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryAndGoalLifecycle(t *testing.T) {
	mux, store := setupAPI(t)
	alice := signupAndLogin(t, mux, "alice")
	bob := signupAndLogin(t, mux, "bob")

	w := do(t, mux, "POST", "/api/boards", alice, map[string]string{"title": "work"})
	board := decode[model.Board](t, w)

	w = do(t, mux, "PUT", fmt.Sprintf("/api/boards/%d", board.ID), alice, map[string]any{
		"participants": []map[string]string{{"username": "bob", "role": "reader"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, mux, "POST", "/api/categories", alice, map[string]any{
		"title": "inbox", "board_id": board.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	cat := decode[model.Category](t, w)

	// Readers cannot create content.
	w = do(t, mux, "POST", "/api/categories", bob, map[string]any{
		"title": "boo", "board_id": board.ID,
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, mux, "POST", "/api/goals", bob, map[string]any{
		"title": "boo", "category_id": cat.ID,
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, mux, "POST", "/api/goals", alice, map[string]any{
		"title": "ship it", "category_id": cat.ID, "priority": "high",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	goal := decode[model.Goal](t, w)
	require.Equal(t, model.StatusToDo, goal.Status)

	// Readers can still read.
	w = do(t, mux, "GET", fmt.Sprintf("/api/goals/%d", goal.ID), bob, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, mux, "PUT", fmt.Sprintf("/api/goals/%d", goal.ID), alice, map[string]any{
		"title": "ship it", "status": "in_progress",
	})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[model.Goal](t, w)
	require.Equal(t, model.StatusInProgress, updated.Status)

	// Deleting the category archives the goal behind a 204.
	w = do(t, mux, "DELETE", fmt.Sprintf("/api/categories/%d", cat.ID), alice, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, mux, "GET", fmt.Sprintf("/api/goals/%d", goal.ID), alice, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var status model.Status
	require.NoError(t, store.QueryRow(`SELECT status FROM goals WHERE id = ?`, goal.ID).Scan(&status))
	require.Equal(t, model.StatusArchived, status)
}

func TestCommentsAuthorship(t *testing.T) {
	mux, _ := setupAPI(t)
	alice := signupAndLogin(t, mux, "alice")
	bob := signupAndLogin(t, mux, "bob")

	w := do(t, mux, "POST", "/api/boards", alice, map[string]string{"title": "work"})
	board := decode[model.Board](t, w)
	w = do(t, mux, "PUT", fmt.Sprintf("/api/boards/%d", board.ID), alice, map[string]any{
		"participants": []map[string]string{{"username": "bob", "role": "writer"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, mux, "POST", "/api/categories", alice, map[string]any{"title": "inbox", "board_id": board.ID})
	cat := decode[model.Category](t, w)
	w = do(t, mux, "POST", "/api/goals", alice, map[string]any{"title": "review", "category_id": cat.ID})
	goal := decode[model.Goal](t, w)

	w = do(t, mux, "POST", "/api/comments", bob, map[string]any{"goal_id": goal.ID, "text": "on it"})
	require.Equal(t, http.StatusCreated, w.Code)
	comment := decode[model.Comment](t, w)

	w = do(t, mux, "GET", fmt.Sprintf("/api/comments?goal=%d", goal.ID), alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]model.Comment](t, w)
	require.Len(t, list, 1)

	// Only the author mutates a comment, whatever the board role.
	commentPath := fmt.Sprintf("/api/comments/%d", comment.ID)
	w = do(t, mux, "PUT", commentPath, alice, map[string]string{"text": "hijack"})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, mux, "PUT", commentPath, bob, map[string]string{"text": "done"})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, mux, "DELETE", commentPath, alice, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, mux, "DELETE", commentPath, bob, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestBotVerifyEndpoint(t *testing.T) {
	mux, store := setupAPI(t)
	alice := signupAndLogin(t, mux, "alice")

	tu, _, err := store.GetOrCreateTgUser(555, "alice_tg")
	require.NoError(t, err)
	code, err := store.IssueVerificationCode(tu.ID)
	require.NoError(t, err)

	w := do(t, mux, "PATCH", "/api/bot/verify", alice, map[string]string{"verification_code": "bogus"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, mux, "PATCH", "/api/bot/verify", alice, map[string]string{"verification_code": code})
	require.Equal(t, http.StatusOK, w.Code)

	linked, _, err := store.GetOrCreateTgUser(555, "")
	require.NoError(t, err)
	require.True(t, linked.Verified())

	// The code is single use.
	w = do(t, mux, "PATCH", "/api/bot/verify", alice, map[string]string{"verification_code": code})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
