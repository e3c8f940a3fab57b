package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/logging"
)

type availabilityService interface {
	CreateWindow(ctx context.Context, mentorID uuid.UUID, start, end time.Time) (*domain.AvailabilityWindow, error)
	ListWindows(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]domain.AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, mentorID, windowID uuid.UUID) error
	IsFree(ctx context.Context, mentorID uuid.UUID, start, end time.Time) (bool, error)
}

type AvailabilityHandler struct {
	availability availabilityService
}

func NewAvailabilityHandler(availability availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

type createWindowRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type windowDTO struct {
	ID        uuid.UUID `json:"id"`
	MentorID  uuid.UUID `json:"mentor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IsBooked  bool      `json:"is_booked"`
}

func toWindowDTO(w *domain.AvailabilityWindow) windowDTO {
	return windowDTO{
		ID:        w.ID,
		MentorID:  w.MentorID,
		StartTime: w.StartTime,
		EndTime:   w.EndTime,
		IsBooked:  w.IsBooked,
	}
}

func (h *AvailabilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, role, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if role != domain.RoleMentor {
		RespondAppError(w, ErrNotMentor, nil)
		return
	}

	var req createWindowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	win, err := h.availability.CreateWindow(r.Context(), userID, req.StartTime, req.EndTime)
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to create availability window", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toWindowDTO(win))
}

func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	windowID, appErr := uuidParam(r, "windowID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	if err := h.availability.DeleteWindow(r.Context(), userID, windowID); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]uuid.UUID{"id": windowID})
}

func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	mentorID, appErr := uuidParam(r, "mentorID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	from, to, fields := rangeQuery(r, "from", "to")
	if fields != nil {
		RespondValidationError(w, fields)
		return
	}

	windows, err := h.availability.ListWindows(r.Context(), mentorID, from, to)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list availability", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]windowDTO, len(windows))
	for i := range windows {
		dtos[i] = toWindowDTO(&windows[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AvailabilityHandler) Free(w http.ResponseWriter, r *http.Request) {
	mentorID, appErr := uuidParam(r, "mentorID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	start, end, fields := rangeQuery(r, "start", "end")
	if fields != nil {
		RespondValidationError(w, fields)
		return
	}

	free, err := h.availability.IsFree(r.Context(), mentorID, start, end)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to check mentor availability", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"mentor_id":  mentorID,
		"start_time": start,
		"end_time":   end,
		"free":       free,
	})
}

func rangeQuery(r *http.Request, fromName, toName string) (time.Time, time.Time, []FieldError) {
	var fields []FieldError
	from, errs := requiredTimeQuery(r, fromName)
	fields = append(fields, errs...)
	to, errs := requiredTimeQuery(r, toName)
	fields = append(fields, errs...)
	if len(fields) == 0 && !to.After(from) {
		fields = append(fields, FieldError{Field: toName, Message: "must be after " + fromName})
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, fields
	}
	return from, to, nil
}
