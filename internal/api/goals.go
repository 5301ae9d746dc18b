package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/db"
	"github.com/vmalykh/goalboard/internal/model"
)

func (a *API) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var req struct {
		Title       string         `json:"title"`
		Description string         `json:"description"`
		CategoryID  int64          `json:"category_id"`
		Priority    model.Priority `json:"priority"`
		DueDate     *time.Time     `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.CategoryID <= 0 {
		writeError(w, http.StatusBadRequest, "category_id required")
		return
	}

	goal, err := a.store.CreateGoal(u.ID, req.CategoryID, req.Title, req.Description, req.Priority, req.DueDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (a *API) handleListGoals(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	q := r.URL.Query()

	var f db.GoalFilter
	if v := q.Get("category"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category filter")
			return
		}
		f.CategoryID = &id
	}
	if v := q.Get("status"); v != "" {
		st := model.Status(v)
		if !st.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		f.Status = &st
	}
	if v := q.Get("priority"); v != "" {
		p := model.Priority(v)
		if !p.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid priority filter")
			return
		}
		f.Priority = &p
	}

	goals, err := a.store.ListGoals(u.ID, f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if goals == nil {
		goals = []model.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

// getGoalChecked fetches a non-archived goal and verifies the caller
// can at least read the board it lives on.
func (a *API) getGoalChecked(r *http.Request) (*model.Goal, *model.Category, error) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		return nil, nil, access.ErrNotFound
	}
	goal, err := a.store.GetGoal(id)
	if err != nil {
		return nil, nil, err
	}
	cat, err := a.store.GetCategory(goal.CategoryID)
	if err != nil {
		return nil, nil, err
	}
	if err := a.guard.CheckRead(u.ID, cat.BoardID); err != nil {
		return nil, nil, err
	}
	return goal, cat, nil
}

func (a *API) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, _, err := a.getGoalChecked(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (a *API) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	goal, cat, err := a.getGoalChecked(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.guard.CheckWrite(u.ID, cat.BoardID); err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Title       string         `json:"title"`
		Description string         `json:"description"`
		Status      model.Status   `json:"status"`
		Priority    model.Priority `json:"priority"`
		DueDate     *time.Time     `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Status == "" {
		req.Status = goal.Status
	}
	if req.Priority == "" {
		req.Priority = goal.Priority
	}

	if err := a.store.UpdateGoal(goal.ID, req.Title, req.Description, req.Status, req.Priority, req.DueDate); err != nil {
		writeDomainError(w, err)
		return
	}
	updated, err := a.store.GetGoal(goal.ID)
	if err != nil {
		// Updated straight into archived; it no longer lists.
		if errors.Is(err, access.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	goal, cat, err := a.getGoalChecked(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.guard.CheckWrite(u.ID, cat.BoardID); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.store.DeleteGoal(goal.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
