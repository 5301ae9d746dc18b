package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/model"
)

// boardOfGoal resolves a goal to the board it lives on.
func (a *API) boardOfGoal(goalID int64) (int64, error) {
	goal, err := a.store.GetGoal(goalID)
	if err != nil {
		return 0, err
	}
	cat, err := a.store.GetCategory(goal.CategoryID)
	if err != nil {
		return 0, err
	}
	return cat.BoardID, nil
}

func (a *API) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var req struct {
		GoalID int64  `json:"goal_id"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.GoalID <= 0 {
		writeError(w, http.StatusBadRequest, "goal_id required")
		return
	}

	boardID, err := a.boardOfGoal(req.GoalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.guard.CheckWrite(u.ID, boardID); err != nil {
		writeDomainError(w, err)
		return
	}

	comment, err := a.store.CreateComment(req.GoalID, u.ID, req.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (a *API) handleListComments(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	goalID, err := strconv.ParseInt(r.URL.Query().Get("goal"), 10, 64)
	if err != nil || goalID <= 0 {
		writeError(w, http.StatusBadRequest, "goal filter required")
		return
	}

	boardID, err := a.boardOfGoal(goalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.guard.CheckRead(u.ID, boardID); err != nil {
		writeDomainError(w, err)
		return
	}

	comments, err := a.store.ListComments(goalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// getCommentChecked fetches a comment and verifies the caller can read
// the board its goal lives on.
func (a *API) getCommentChecked(r *http.Request) (*model.Comment, error) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		return nil, access.ErrNotFound
	}
	comment, err := a.store.GetComment(id)
	if err != nil {
		return nil, err
	}
	boardID, err := a.boardOfGoal(comment.GoalID)
	if err != nil {
		return nil, err
	}
	if err := a.guard.CheckRead(u.ID, boardID); err != nil {
		return nil, err
	}
	return comment, nil
}

func (a *API) handleGetComment(w http.ResponseWriter, r *http.Request) {
	comment, err := a.getCommentChecked(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (a *API) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	comment, err := a.getCommentChecked(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.guard.CheckAuthor(u.ID, comment.UserID); err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := a.store.UpdateComment(comment.ID, req.Text); err != nil {
		writeDomainError(w, err)
		return
	}
	updated, err := a.store.GetComment(comment.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	comment, err := a.getCommentChecked(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.guard.CheckAuthor(u.ID, comment.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.store.DeleteComment(comment.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
