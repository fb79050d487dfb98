package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mielski/chores/internal/core"
)

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	account, err := s.service.Ledger().GetAccount(r.Context(), user)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, account)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "invalid limit: must be a positive number")
			return
		}
		limit = n
	}

	txs, err := s.service.Ledger().ListTransactions(r.Context(), user, limit)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, txs)
}

func (s *Server) handleAppendTransaction(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var body struct {
		Amount      string `json:"amount"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	amount, err := core.ParseSignedDecimalToCents(body.Amount)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	txType := core.TransactionType(body.Type)
	if txType == "" {
		txType = core.TxManual
	}

	account, err := s.service.RecordTransaction(r.Context(), user, amount, txType, body.Description)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusCreated, account)
}

func (s *Server) handleUndoTransaction(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	account, err := s.service.UndoTransaction(r.Context(), user)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, account)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var settings core.AllowanceSettings
	if err := decodeBody(r, &settings); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	account, err := s.service.Ledger().UpdateSettings(r.Context(), user, settings)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.invalidateSummary(user)
	writeData(w, http.StatusOK, account)
}

func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if summary, found := s.summaryCache.Get(user); found {
		writeData(w, http.StatusOK, summary)
		return
	}

	summary, err := s.service.Ledger().WeeklySummary(r.Context(), user)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.summaryCache.Set(user, summary)
	writeData(w, http.StatusOK, summary)
}
