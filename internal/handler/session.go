package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/calendar"
	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/logging"
	"github.com/josh-kwaku/session-escrow/internal/service/booking"
)

type bookingService interface {
	CreateBooking(ctx context.Context, req booking.BookingRequest) (*domain.Session, error)
	Get(ctx context.Context, sessionID, actor uuid.UUID) (*domain.Session, error)
	List(ctx context.Context, userID uuid.UUID, filter domain.SessionFilter) ([]domain.Session, error)
	Confirm(ctx context.Context, sessionID, actor uuid.UUID, role domain.Role) (*domain.Session, error)
	Start(ctx context.Context, sessionID, actor uuid.UUID) (*domain.Session, error)
	Complete(ctx context.Context, sessionID, actor uuid.UUID) (*domain.Session, error)
	Cancel(ctx context.Context, sessionID, actor uuid.UUID) (*domain.Session, error)
	CancelMany(ctx context.Context, actor uuid.UUID, ids []uuid.UUID) []booking.CancelResult
	MentorStats(ctx context.Context, mentorID, actor uuid.UUID, from, to *time.Time) (*domain.MentorStats, error)
}

type SessionHandler struct {
	bookings bookingService
}

func NewSessionHandler(bookings bookingService) *SessionHandler {
	return &SessionHandler{bookings: bookings}
}

type createSessionRequest struct {
	MentorID    uuid.UUID  `json:"mentor_id" validate:"required"`
	StartTime   time.Time  `json:"start_time" validate:"required"`
	EndTime     time.Time  `json:"end_time" validate:"required,gtfield=StartTime"`
	Rate        int64      `json:"rate" validate:"gt=0"`
	SessionType string     `json:"session_type" validate:"max=32"`
	WindowID    *uuid.UUID `json:"window_id"`
}

type cancelManyRequest struct {
	SessionIDs []uuid.UUID `json:"session_ids" validate:"required,min=1,max=100"`
}

type sessionDTO struct {
	ID                uuid.UUID  `json:"id"`
	StudentID         uuid.UUID  `json:"student_id"`
	MentorID          uuid.UUID  `json:"mentor_id"`
	WindowID          *uuid.UUID `json:"window_id"`
	SessionType       string     `json:"session_type"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           time.Time  `json:"end_time"`
	Rate              int64      `json:"rate"`
	Fee               int64      `json:"fee"`
	Status            string     `json:"status"`
	StudentConfirmed  bool       `json:"student_confirmed"`
	MentorConfirmed   bool       `json:"mentor_confirmed"`
	Verified          bool       `json:"verified"`
	SettlementPending bool       `json:"settlement_pending"`
	RoomToken         *string    `json:"room_token"`
	ActualStartTime   *time.Time `json:"actual_start_time"`
	ActualEndTime     *time.Time `json:"actual_end_time"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toSessionDTO(s *domain.Session) sessionDTO {
	return sessionDTO{
		ID:                s.ID,
		StudentID:         s.StudentID,
		MentorID:          s.MentorID,
		WindowID:          s.WindowID,
		SessionType:       string(s.SessionType),
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		Rate:              s.Rate,
		Fee:               s.Fee,
		Status:            string(s.Status),
		StudentConfirmed:  s.StudentConfirmed,
		MentorConfirmed:   s.MentorConfirmed,
		Verified:          s.Verified,
		SettlementPending: s.SettlementPending,
		RoomToken:         s.RoomToken,
		ActualStartTime:   s.ActualStartTime,
		ActualEndTime:     s.ActualEndTime,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

type cancelResultDTO struct {
	SessionID uuid.UUID   `json:"session_id"`
	Session   *sessionDTO `json:"session,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.bookings.CreateBooking(r.Context(), booking.BookingRequest{
		StudentID:   userID,
		MentorID:    req.MentorID,
		Start:       req.StartTime,
		End:         req.EndTime,
		Rate:        req.Rate,
		SessionType: domain.SessionType(req.SessionType),
		WindowID:    req.WindowID,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("booking rejected", "mentor_id", req.MentorID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toSessionDTO(sess))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	sessionID, appErr := uuidParam(r, "sessionID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	sess, err := h.bookings.Get(r.Context(), sessionID, userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toSessionDTO(sess))
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	filter, fields := sessionFilterQuery(r)
	if fields != nil {
		RespondValidationError(w, fields)
		return
	}

	sessions, err := h.bookings.List(r.Context(), userID, filter)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list sessions", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]sessionDTO, len(sessions))
	for i := range sessions {
		dtos[i] = toSessionDTO(&sessions[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

// Calendar exports the caller's sessions as an iCalendar feed.
func (h *SessionHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	filter, fields := sessionFilterQuery(r)
	if fields != nil {
		RespondValidationError(w, fields)
		return
	}

	sessions, err := h.bookings.List(r.Context(), userID, filter)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list sessions for calendar", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sessions.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(calendar.Export(sessions, userID))); err != nil {
		logging.FromContext(r.Context()).Error("failed to write calendar", "error", err)
	}
}

func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context, sessionID, actor uuid.UUID, role domain.Role) (*domain.Session, error) {
		return h.bookings.Confirm(ctx, sessionID, actor, role)
	})
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context, sessionID, actor uuid.UUID, _ domain.Role) (*domain.Session, error) {
		return h.bookings.Start(ctx, sessionID, actor)
	})
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context, sessionID, actor uuid.UUID, _ domain.Role) (*domain.Session, error) {
		return h.bookings.Complete(ctx, sessionID, actor)
	})
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context, sessionID, actor uuid.UUID, _ domain.Role) (*domain.Session, error) {
		return h.bookings.Cancel(ctx, sessionID, actor)
	})
}

type sessionAction func(ctx context.Context, sessionID, actor uuid.UUID, role domain.Role) (*domain.Session, error)

func (h *SessionHandler) act(w http.ResponseWriter, r *http.Request, fn sessionAction) {
	userID, role, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	sessionID, appErr := uuidParam(r, "sessionID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	sess, err := fn(r.Context(), sessionID, userID, role)
	if err != nil {
		logging.FromContext(r.Context()).Warn("session action rejected", "session_id", sessionID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toSessionDTO(sess))
}

// CancelMany reports a result per session; the request itself succeeds even
// when some cancellations fail.
func (h *SessionHandler) CancelMany(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req cancelManyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	results := h.bookings.CancelMany(r.Context(), userID, req.SessionIDs)
	dtos := make([]cancelResultDTO, len(results))
	for i, res := range results {
		dtos[i] = cancelResultDTO{SessionID: res.SessionID}
		if res.Err != nil {
			appErr := appErrorFor(res.Err)
			dtos[i].Error = &APIError{Code: appErr.Code, Message: appErr.Message}
			continue
		}
		dto := toSessionDTO(res.Session)
		dtos[i].Session = &dto
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *SessionHandler) MentorStats(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	mentorID, appErr := uuidParam(r, "mentorID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	from, fields := timeQuery(r, "from")
	to, errs := timeQuery(r, "to")
	fields = append(fields, errs...)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	st, err := h.bookings.MentorStats(r.Context(), mentorID, userID, from, to)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, st)
}

func sessionFilterQuery(r *http.Request) (domain.SessionFilter, []FieldError) {
	var filter domain.SessionFilter
	var fields []FieldError

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.SessionStatus(raw)
		if !status.IsValid() {
			fields = append(fields, FieldError{Field: "status", Message: "must be one of: scheduled ongoing completed cancelled"})
		}
		filter.Status = &status
	}
	from, errs := timeQuery(r, "from")
	fields = append(fields, errs...)
	to, errs := timeQuery(r, "to")
	fields = append(fields, errs...)
	filter.From, filter.To = from, to

	if len(fields) > 0 {
		return domain.SessionFilter{}, fields
	}
	return filter, nil
}
