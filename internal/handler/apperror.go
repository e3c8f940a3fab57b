package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}
	ErrForbidden          = &AppError{http.StatusForbidden, "FORBIDDEN", "You are not allowed to perform this action"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInsufficientFunds  = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrInvalidAmount      = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrDuplicateReference = &AppError{http.StatusConflict, "DUPLICATE_REFERENCE", "Reference already used for this wallet"}
	ErrVersionConflict    = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}

	ErrSlotConflict       = &AppError{http.StatusConflict, "SLOT_CONFLICT", "The mentor is already booked for this time"}
	ErrInvalidWindow      = &AppError{http.StatusUnprocessableEntity, "INVALID_WINDOW", "Start and end do not form a bookable window"}
	ErrInvalidTransition  = &AppError{http.StatusConflict, "INVALID_TRANSITION", "The session cannot make this transition"}
	ErrInvalidSessionType = &AppError{http.StatusBadRequest, "INVALID_SESSION_TYPE", "Unknown session type"}
	ErrSelfBooking        = &AppError{http.StatusUnprocessableEntity, "SELF_BOOKING_NOT_ALLOWED", "Cannot book a session with yourself"}
	ErrNotMentor          = &AppError{http.StatusUnprocessableEntity, "NOT_A_MENTOR", "User is not a mentor"}
	ErrNotStudent         = &AppError{http.StatusUnprocessableEntity, "NOT_A_STUDENT", "User is not a student"}
	ErrUserInactive       = &AppError{http.StatusUnprocessableEntity, "USER_INACTIVE", "User is not active"}
	ErrWindowBooked       = &AppError{http.StatusConflict, "WINDOW_BOOKED", "Availability window is already booked"}
	ErrWindowMismatch     = &AppError{http.StatusUnprocessableEntity, "WINDOW_MISMATCH", "Booking does not fit the availability window"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
