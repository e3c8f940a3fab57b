package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrVersionConflict    = errors.New("optimistic lock conflict")
	ErrDuplicateReference = errors.New("ledger reference already recorded")

	ErrSlotConflict       = errors.New("slot conflicts with an existing booking")
	ErrInvalidWindow      = errors.New("invalid booking window")
	ErrInvalidTransition  = errors.New("invalid session transition")
	ErrSettlementPending  = errors.New("settlement pending")
	ErrInvalidSessionType = errors.New("invalid session type")

	ErrForbidden      = errors.New("actor not allowed to perform this action")
	ErrSelfBooking    = errors.New("cannot book a session with yourself")
	ErrNotMentor      = errors.New("user is not a mentor")
	ErrNotStudent     = errors.New("user is not a student")
	ErrUserInactive   = errors.New("user is not active")
	ErrWindowBooked   = errors.New("availability window already booked")
	ErrWindowMismatch = errors.New("booking does not fit the availability window")
)
