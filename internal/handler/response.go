package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

var domainErrors = []struct {
	err    error
	appErr *AppError
}{
	{domain.ErrNotFound, ErrResourceNotFound},
	{domain.ErrForbidden, ErrForbidden},
	{domain.ErrInsufficientFunds, ErrInsufficientFunds},
	{domain.ErrInvalidAmount, ErrInvalidAmount},
	{domain.ErrDuplicateReference, ErrDuplicateReference},
	{domain.ErrVersionConflict, ErrVersionConflict},
	{domain.ErrSlotConflict, ErrSlotConflict},
	{domain.ErrInvalidWindow, ErrInvalidWindow},
	{domain.ErrInvalidTransition, ErrInvalidTransition},
	{domain.ErrInvalidSessionType, ErrInvalidSessionType},
	{domain.ErrSelfBooking, ErrSelfBooking},
	{domain.ErrNotMentor, ErrNotMentor},
	{domain.ErrNotStudent, ErrNotStudent},
	{domain.ErrUserInactive, ErrUserInactive},
	{domain.ErrWindowBooked, ErrWindowBooked},
	{domain.ErrWindowMismatch, ErrWindowMismatch},
	{domain.ErrInvalidRequest, ErrInvalidRequest},
}

func RespondDomainError(w http.ResponseWriter, err error) {
	RespondAppError(w, appErrorFor(err), nil)
}

func appErrorFor(err error) *AppError {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.appErr
		}
	}
	slog.Error("unhandled domain error", "error", err)
	return ErrInternalError
}
