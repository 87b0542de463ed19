package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pennyledger/pennyledger/internal/ledger"
	apperrors "github.com/pennyledger/pennyledger/internal/shared/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError sends a plain error response
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondLedgerError maps an engine or account-service error to its
// transport code and HTTP status. Validation messages pass through to the
// client; storage failures stay generic.
func respondLedgerError(w http.ResponseWriter, err error) {
	appErr := toAppError(err)

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperrors.ErrCodeAccountNotFound, apperrors.ErrCodeRecordNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeSameAccountTransfer, apperrors.ErrCodeCurrencyMismatch,
		apperrors.ErrCodeInvalidAmount, apperrors.ErrCodeValidation, apperrors.ErrCodeBadRequest:
		status = http.StatusBadRequest
	case apperrors.ErrCodeConflict:
		status = http.StatusConflict
	}

	respondWithJSON(w, status, ErrorResponse{Error: appErr.Message, Code: appErr.Code})
}

func toAppError(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	var accErr *ledger.AccountNotFoundError
	if errors.As(err, &accErr) {
		return apperrors.New(apperrors.ErrCodeAccountNotFound, accErr.Error())
	}

	var recErr *ledger.RecordNotFoundError
	if errors.As(err, &recErr) {
		return apperrors.New(apperrors.ErrCodeRecordNotFound, recErr.Error())
	}

	switch {
	case errors.Is(err, ledger.ErrSameAccountTransfer):
		return apperrors.New(apperrors.ErrCodeSameAccountTransfer, err.Error())
	case errors.Is(err, ledger.ErrCurrencyMismatch):
		return apperrors.New(apperrors.ErrCodeCurrencyMismatch, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount):
		return apperrors.New(apperrors.ErrCodeInvalidAmount, err.Error())
	case errors.Is(err, ledger.ErrAccountInUse), errors.Is(err, ledger.ErrAccountNameTaken),
		errors.Is(err, ledger.ErrTransferOwnedRecord):
		return apperrors.Conflict(err.Error())
	case ledger.IsValidation(err):
		return apperrors.Validation(err.Error())
	}

	var storageErr *ledger.StorageError
	if errors.As(err, &storageErr) {
		return apperrors.Storage(storageErr)
	}

	return apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal error")
}
