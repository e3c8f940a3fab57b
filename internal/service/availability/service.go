package availability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/logging"
	"github.com/josh-kwaku/session-escrow/internal/repository"
)

type windowRepo interface {
	Create(ctx context.Context, w *domain.AvailabilityWindow) error
	ListByMentor(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]domain.AvailabilityWindow, error)
	DeleteUnbooked(ctx context.Context, id, mentorID uuid.UUID) error
}

type overlapChecker interface {
	HasOverlap(ctx context.Context, q repository.Querier, mentorID uuid.UUID, start, end time.Time) (bool, error)
}

type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type Service struct {
	windows  windowRepo
	sessions overlapChecker
	users    userLookup
	db       *sql.DB
	policy   Policy
	now      func() time.Time
}

func NewService(windows windowRepo, sessions overlapChecker, users userLookup, db *sql.DB, policy Policy) *Service {
	return &Service{
		windows:  windows,
		sessions: sessions,
		users:    users,
		db:       db,
		policy:   policy,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) CreateWindow(ctx context.Context, mentorID uuid.UUID, start, end time.Time) (*domain.AvailabilityWindow, error) {
	log := logging.FromContext(ctx)

	mentor, err := s.users.GetByID(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("CreateWindow: %w", err)
	}
	if mentor.Role != domain.RoleMentor {
		return nil, fmt.Errorf("CreateWindow: %w", domain.ErrNotMentor)
	}
	if mentor.Status != domain.UserStatusActive {
		return nil, fmt.Errorf("CreateWindow: %w", domain.ErrUserInactive)
	}

	now := s.now().UTC()
	if err := s.policy.Validate(start, end, now); err != nil {
		return nil, fmt.Errorf("CreateWindow: %w", err)
	}

	w := &domain.AvailabilityWindow{
		ID:        uuid.New(),
		MentorID:  mentorID,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		CreatedAt: now,
	}
	if err := s.windows.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("CreateWindow: %w", err)
	}

	log.Info("availability window created",
		"window_id", w.ID,
		"mentor_id", mentorID,
		"start", w.StartTime,
		"end", w.EndTime,
	)
	return w, nil
}

func (s *Service) ListWindows(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]domain.AvailabilityWindow, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("ListWindows: from must be before to: %w", domain.ErrInvalidRequest)
	}
	windows, err := s.windows.ListByMentor(ctx, mentorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ListWindows: %w", err)
	}
	return windows, nil
}

func (s *Service) DeleteWindow(ctx context.Context, mentorID, windowID uuid.UUID) error {
	if err := s.windows.DeleteUnbooked(ctx, windowID, mentorID); err != nil {
		return fmt.Errorf("DeleteWindow: %w", err)
	}
	logging.FromContext(ctx).Info("availability window deleted", "window_id", windowID, "mentor_id", mentorID)
	return nil
}

// IsFree reports whether no active session of the mentor intersects
// [start, end). Touching boundaries are free.
func (s *Service) IsFree(ctx context.Context, mentorID uuid.UUID, start, end time.Time) (bool, error) {
	if !start.Before(end) {
		return false, fmt.Errorf("IsFree: %w", domain.ErrInvalidWindow)
	}
	busy, err := s.sessions.HasOverlap(ctx, s.db, mentorID, start, end)
	if err != nil {
		return false, fmt.Errorf("IsFree: %w", err)
	}
	return !busy, nil
}
