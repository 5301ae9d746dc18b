package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/model"
)

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var req struct {
		Title   string `json:"title"`
		BoardID int64  `json:"board_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" || req.BoardID <= 0 {
		writeError(w, http.StatusBadRequest, "title and board_id required")
		return
	}

	cat, err := a.store.CreateCategory(req.Title, req.BoardID, u.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var boardID *int64
	if v := r.URL.Query().Get("board"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid board filter")
			return
		}
		boardID = &id
	}

	cats, err := a.store.ListCategories(u.ID, boardID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// getCategoryChecked fetches a live category and verifies the caller
// can at least read its board.
func (a *API) getCategoryChecked(r *http.Request) (*model.Category, error) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		return nil, access.ErrNotFound
	}
	cat, err := a.store.GetCategory(id)
	if err != nil {
		return nil, err
	}
	if err := a.guard.CheckRead(u.ID, cat.BoardID); err != nil {
		return nil, err
	}
	return cat, nil
}

func (a *API) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := a.getCategoryChecked(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (a *API) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	cat, err := a.getCategoryChecked(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.guard.CheckWrite(u.ID, cat.BoardID); err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	if err := a.store.UpdateCategory(cat.ID, req.Title); err != nil {
		writeDomainError(w, err)
		return
	}
	updated, err := a.store.GetCategory(cat.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	cat, err := a.getCategoryChecked(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.guard.CheckWrite(u.ID, cat.BoardID); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.store.DeleteCategory(cat.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
