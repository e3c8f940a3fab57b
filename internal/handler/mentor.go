package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/logging"
)

const (
	defaultMentorPage = 50
	maxMentorPage     = 100
)

type mentorDirectory interface {
	ListActiveMentors(ctx context.Context, limit, offset int) ([]domain.User, error)
}

type MentorHandler struct {
	mentors mentorDirectory
}

func NewMentorHandler(mentors mentorDirectory) *MentorHandler {
	return &MentorHandler{mentors: mentors}
}

type mentorDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// List returns the bookable mentors, a page at a time.
func (h *MentorHandler) List(w http.ResponseWriter, r *http.Request) {
	var fields []FieldError
	limit, errs := intQuery(r, "limit")
	fields = append(fields, errs...)
	offset, errs := intQuery(r, "offset")
	fields = append(fields, errs...)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	if limit == 0 || limit > maxMentorPage {
		limit = defaultMentorPage
	}

	mentors, err := h.mentors.ListActiveMentors(r.Context(), limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list mentors", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]mentorDTO, len(mentors))
	for i, m := range mentors {
		dtos[i] = mentorDTO{ID: m.ID, Name: m.Name}
	}
	RespondSuccess(w, http.StatusOK, dtos)
}
