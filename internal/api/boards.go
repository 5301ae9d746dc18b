package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vmalykh/goalboard/internal/db"
	"github.com/vmalykh/goalboard/internal/model"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (a *API) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
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

	board, err := a.store.CreateBoard(req.Title, u.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

func (a *API) handleListBoards(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	boards, err := a.store.ListBoards(u.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if boards == nil {
		boards = []model.Board{}
	}
	writeJSON(w, http.StatusOK, boards)
}

func (a *API) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := a.guard.CheckRead(u.ID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	board, err := a.store.GetBoard(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *API) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := a.guard.CheckOwner(u.ID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := a.store.GetBoard(id); err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Title        string                 `json:"title"`
		Participants []db.ParticipantChange `json:"participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := a.store.UpdateBoard(id, u.ID, req.Title, req.Participants); err != nil {
		writeDomainError(w, err)
		return
	}
	board, err := a.store.GetBoard(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *API) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := a.guard.CheckOwner(u.ID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := a.store.DeleteBoard(id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
