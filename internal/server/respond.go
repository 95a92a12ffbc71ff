package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"booklib/internal/loan"
	"booklib/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeLoanError maps the loan error taxonomy to HTTP statuses. The
// mapping lives only here; the core never sees transport concerns.
// Clients get the bare sentinel message; wrapped detail stays in the
// log.
func (s *Server) writeLoanError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, loan.ErrNotFound):
		status, message = http.StatusNotFound, loan.ErrNotFound.Error()
	case errors.Is(err, loan.ErrInvalidCategory):
		status, message = http.StatusBadRequest, loan.ErrInvalidCategory.Error()
	case errors.Is(err, loan.ErrForbidden):
		status, message = http.StatusForbidden, loan.ErrForbidden.Error()
	case errors.Is(err, loan.ErrAlreadyOnLoan):
		status, message = http.StatusConflict, loan.ErrAlreadyOnLoan.Error()
	case errors.Is(err, loan.ErrNotOnLoan):
		status, message = http.StatusConflict, loan.ErrNotOnLoan.Error()
	case errors.Is(err, loan.ErrStoreUnavailable):
		status, message = http.StatusServiceUnavailable, loan.ErrStoreUnavailable.Error()
		s.logger.Error("storage failure", zap.Error(err))
	case errors.Is(err, loan.ErrLedgerInconsistency):
		status, message = http.StatusInternalServerError, loan.ErrLedgerInconsistency.Error()
		s.logger.Error("ledger inconsistency", zap.Error(err))
	default:
		s.logger.Error("unexpected loan error", zap.Error(err))
	}
	writeError(w, status, message)
}

// writeStoreError maps storage errors for plain CRUD handlers.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, storage.ErrInUse):
		writeError(w, http.StatusConflict, "record has loan history and cannot be deleted")
	default:
		s.logger.Error("storage failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
