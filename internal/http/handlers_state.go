package http

import (
	"net/http"

	"github.com/mielski/chores/internal/core"
)

// stateResponse is the wire shape of a chore state, annotated with
// whether the session can step back.
type stateResponse struct {
	ChoreList []core.ChoreEntry `json:"choreList"`
	Version   int64             `json:"version"`
	CanUndo   bool              `json:"canUndo"`
}

func (s *Server) stateResponse(userID string, state core.UserState) stateResponse {
	return stateResponse{
		ChoreList: state.ChoreList,
		Version:   state.Version,
		CanUndo:   s.service.CanUndo(userID),
	}
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	state, err := s.service.GetState(r.Context(), user)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, s.stateResponse(user, state))
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var body struct {
		ChoreList []core.ChoreEntry `json:"choreList"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	state, err := s.service.SetState(r.Context(), user, body.ChoreList)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.invalidateSummary(user)
	writeData(w, http.StatusOK, s.stateResponse(user, state))
}

func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	state, err := s.service.ResetState(r.Context(), user)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.invalidateSummary(user)
	writeData(w, http.StatusOK, s.stateResponse(user, state))
}

func (s *Server) handleUndoState(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	state, err := s.service.Undo(r.Context(), user)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.invalidateSummary(user)
	writeData(w, http.StatusOK, s.stateResponse(user, state))
}
