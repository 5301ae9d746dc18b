// Package api exposes the JSON HTTP surface: account auth, bot
// verification, and CRUD for boards, categories, goals and comments
// gated by board membership roles.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/db"
)

// API holds the handler dependencies. Constructed once in main; no
// package-level state.
type API struct {
	store *db.Store
	guard *access.Guard
}

func New(store *db.Store) *API {
	return &API{store: store, guard: access.NewGuard(store)}
}

// Register mounts all routes on mux. Everything except signup and login
// goes through the auth middleware.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/signup", a.handleSignup)
	mux.HandleFunc("POST /api/auth/login", a.handleLogin)

	authed := http.NewServeMux()
	authed.HandleFunc("POST /api/auth/logout", a.handleLogout)
	authed.HandleFunc("GET /api/auth/me", a.handleMe)
	authed.HandleFunc("PUT /api/auth/me", a.handleUpdateMe)
	authed.HandleFunc("PATCH /api/auth/password", a.handleUpdatePassword)
	authed.HandleFunc("PATCH /api/bot/verify", a.handleBotVerify)

	authed.HandleFunc("POST /api/boards", a.handleCreateBoard)
	authed.HandleFunc("GET /api/boards", a.handleListBoards)
	authed.HandleFunc("GET /api/boards/{id}", a.handleGetBoard)
	authed.HandleFunc("PUT /api/boards/{id}", a.handleUpdateBoard)
	authed.HandleFunc("DELETE /api/boards/{id}", a.handleDeleteBoard)

	authed.HandleFunc("POST /api/categories", a.handleCreateCategory)
	authed.HandleFunc("GET /api/categories", a.handleListCategories)
	authed.HandleFunc("GET /api/categories/{id}", a.handleGetCategory)
	authed.HandleFunc("PUT /api/categories/{id}", a.handleUpdateCategory)
	authed.HandleFunc("DELETE /api/categories/{id}", a.handleDeleteCategory)

	authed.HandleFunc("POST /api/goals", a.handleCreateGoal)
	authed.HandleFunc("GET /api/goals", a.handleListGoals)
	authed.HandleFunc("GET /api/goals/{id}", a.handleGetGoal)
	authed.HandleFunc("PUT /api/goals/{id}", a.handleUpdateGoal)
	authed.HandleFunc("DELETE /api/goals/{id}", a.handleDeleteGoal)

	authed.HandleFunc("POST /api/comments", a.handleCreateComment)
	authed.HandleFunc("GET /api/comments", a.handleListComments)
	authed.HandleFunc("GET /api/comments/{id}", a.handleGetComment)
	authed.HandleFunc("PUT /api/comments/{id}", a.handleUpdateComment)
	authed.HandleFunc("DELETE /api/comments/{id}", a.handleDeleteComment)

	mux.Handle("/api/", a.requireAuth(authed))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the access taxonomy onto HTTP statuses. A
// missing membership surfaces as 404, not 403.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, access.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, access.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("api: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
