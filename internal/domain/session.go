package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusOngoing   SessionStatus = "ongoing"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusOngoing, SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether the session occupies the mentor's time.
func (s SessionStatus) IsActive() bool {
	return s == SessionStatusScheduled || s == SessionStatusOngoing
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

type SessionType string

const (
	SessionTypeLive         SessionType = "Live"
	SessionTypePayPerMinute SessionType = "PayPerMinute"
	SessionTypeFixed        SessionType = "Fixed"
)

type Session struct {
	ID                uuid.UUID
	StudentID         uuid.UUID
	MentorID          uuid.UUID
	WindowID          *uuid.UUID
	SessionType       SessionType
	StartTime         time.Time
	EndTime           time.Time
	Rate              int64
	Fee               int64
	Status            SessionStatus
	StudentConfirmed  bool
	MentorConfirmed   bool
	Verified          bool
	SettlementPending bool
	RoomToken         *string
	ActualStartTime   *time.Time
	ActualEndTime     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

var transitions = map[Action]struct {
	from SessionStatus
	to   SessionStatus
}{
	ActionStart:    {SessionStatusScheduled, SessionStatusOngoing},
	ActionComplete: {SessionStatusOngoing, SessionStatusCompleted},
	ActionCancel:   {SessionStatusScheduled, SessionStatusCancelled},
}

// Transition resolves action against the current status. noop is true when
// the session already sits in the action's target state; callers return the
// session unchanged in that case.
func (s *Session) Transition(action Action) (target SessionStatus, noop bool, err error) {
	t, ok := transitions[action]
	if !ok {
		return "", false, fmt.Errorf("Transition: unknown action %q: %w", action, ErrInvalidTransition)
	}
	switch s.Status {
	case t.to:
		return t.to, true, nil
	case t.from:
		return t.to, false, nil
	default:
		return "", false, fmt.Errorf("Transition: %s from %s: %w", action, s.Status, ErrInvalidTransition)
	}
}

// AllowedActor reports whether actor may perform action on the session.
func (s *Session) AllowedActor(action Action, actor uuid.UUID) bool {
	switch action {
	case ActionStart, ActionComplete:
		return actor == s.MentorID
	case ActionCancel:
		return actor == s.MentorID || actor == s.StudentID
	}
	return false
}

// Confirm records the confirmation of the party holding role.
func (s *Session) Confirm(role Role, actor uuid.UUID) error {
	if s.Status == SessionStatusCancelled {
		return fmt.Errorf("Confirm: %w", ErrInvalidTransition)
	}
	switch {
	case role == RoleStudent && actor == s.StudentID:
		s.StudentConfirmed = true
	case role == RoleMentor && actor == s.MentorID:
		s.MentorConfirmed = true
	default:
		return fmt.Errorf("Confirm: %w", ErrForbidden)
	}
	s.RefreshVerified()
	return nil
}

func (s *Session) RefreshVerified() {
	s.Verified = s.Status == SessionStatusCompleted && s.StudentConfirmed && s.MentorConfirmed
}

func (s *Session) IsParty(actor uuid.UUID) bool {
	return actor == s.StudentID || actor == s.MentorID
}

func (s *Session) DurationMinutes() int64 {
	return int64(s.EndTime.Sub(s.StartTime) / time.Minute)
}

// SettlementReference is shared by every ledger entry settling the session:
// the student's hold and release and the mentor's deposit.
func SettlementReference(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

type SessionFilter struct {
	Status *SessionStatus
	From   *time.Time
	To     *time.Time
}

type MentorStats struct {
	Total     int   `json:"total"`
	Completed int   `json:"completed"`
	Cancelled int   `json:"cancelled"`
	Revenue   int64 `json:"revenue"`
}
