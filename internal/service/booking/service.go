package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/logging"
	"github.com/josh-kwaku/session-escrow/internal/pricing"
	"github.com/josh-kwaku/session-escrow/internal/repository"
	"github.com/josh-kwaku/session-escrow/internal/service/wallet"
)

const defaultMaxRetries = 5

type sessionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, s *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Session, error)
	Update(ctx context.Context, tx *sql.Tx, s *domain.Session) error
	HasOverlap(ctx context.Context, q repository.Querier, mentorID uuid.UUID, start, end time.Time) (bool, error)
	ClearSettlementPending(ctx context.Context, id uuid.UUID, now time.Time) error
	TouchSettlementPending(ctx context.Context, id uuid.UUID, now time.Time) error
	SetRoomToken(ctx context.Context, id uuid.UUID, token string, now time.Time) error
	ListForUser(ctx context.Context, userID uuid.UUID, filter domain.SessionFilter) ([]domain.Session, error)
	MentorStats(ctx context.Context, mentorID uuid.UUID, from, to *time.Time) (*domain.MentorStats, error)
}

type windowRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.AvailabilityWindow, error)
	SetBooked(ctx context.Context, tx *sql.Tx, id uuid.UUID, booked bool) error
}

type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type walletMutator interface {
	Apply(ctx context.Context, tx *sql.Tx, m wallet.Mutation) (*domain.Wallet, error)
	Execute(ctx context.Context, m wallet.Mutation) (*domain.Wallet, error)
}

type feeQuoter interface {
	Quote(sessionType domain.SessionType, rate int64, start, end time.Time) (*pricing.Quote, error)
}

type windowPolicy interface {
	Validate(start, end, now time.Time) error
}

type roomProvisioner interface {
	CreateRoom(ctx context.Context, sessionID uuid.UUID) (string, error)
}

type settlementQueue interface {
	Enqueue(ctx context.Context, sessionID uuid.UUID) error
}

type Service struct {
	sessions   sessionRepo
	windows    windowRepo
	users      userLookup
	wallets    walletMutator
	pricing    feeQuoter
	policy     windowPolicy
	rooms      roomProvisioner
	queue      settlementQueue
	db         *sql.DB
	now        func() time.Time
	maxRetries uint64
}

type Deps struct {
	Sessions sessionRepo
	Windows  windowRepo
	Users    userLookup
	Wallets  walletMutator
	Pricing  feeQuoter
	Policy   windowPolicy
	Rooms    roomProvisioner // optional
	Queue    settlementQueue // optional
	DB       *sql.DB
}

func NewService(d Deps) *Service {
	return &Service{
		sessions:   d.Sessions,
		windows:    d.Windows,
		users:      d.Users,
		wallets:    d.Wallets,
		pricing:    d.Pricing,
		policy:     d.Policy,
		rooms:      d.Rooms,
		queue:      d.Queue,
		db:         d.DB,
		now:        time.Now,
		maxRetries: defaultMaxRetries,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type BookingRequest struct {
	StudentID   uuid.UUID
	MentorID    uuid.UUID
	Start       time.Time
	End         time.Time
	Rate        int64
	SessionType domain.SessionType
	WindowID    *uuid.UUID
}

// CreateBooking validates the request, then in one transaction re-checks the
// slot, inserts the session and holds the fee in the student's escrow. Either
// all of it commits or none of it does. A slot lost to a concurrent booking
// surfaces as ErrSlotConflict whether it is caught by the pre-check or by the
// store's constraints.
func (s *Service) CreateBooking(ctx context.Context, req BookingRequest) (*domain.Session, error) {
	if req.StudentID == req.MentorID {
		return nil, fmt.Errorf("CreateBooking: %w", domain.ErrSelfBooking)
	}

	start := req.Start.UTC().Truncate(time.Microsecond)
	end := req.End.UTC().Truncate(time.Microsecond)
	now := s.now().UTC()

	if err := s.policy.Validate(start, end, now); err != nil {
		return nil, fmt.Errorf("CreateBooking: %w", err)
	}
	quote, err := s.pricing.Quote(req.SessionType, req.Rate, start, end)
	if err != nil {
		return nil, fmt.Errorf("CreateBooking: %w", err)
	}
	if err := s.checkParties(ctx, req.StudentID, req.MentorID); err != nil {
		return nil, fmt.Errorf("CreateBooking: %w", err)
	}

	var sess *domain.Session
	err = repository.RunInTx(ctx, s.db, s.maxRetries, func(tx *sql.Tx) error {
		if req.WindowID != nil {
			w, err := s.windows.GetForUpdate(ctx, tx, *req.WindowID)
			if err != nil {
				return err
			}
			if w.MentorID != req.MentorID || !w.Contains(start, end) {
				return domain.ErrWindowMismatch
			}
			if w.IsBooked {
				return domain.ErrWindowBooked
			}
		}

		busy, err := s.sessions.HasOverlap(ctx, tx, req.MentorID, start, end)
		if err != nil {
			return err
		}
		if busy {
			return domain.ErrSlotConflict
		}

		sess = &domain.Session{
			ID:          uuid.New(),
			StudentID:   req.StudentID,
			MentorID:    req.MentorID,
			WindowID:    req.WindowID,
			SessionType: quote.SessionType,
			StartTime:   start,
			EndTime:     end,
			Rate:        quote.Rate,
			Fee:         quote.Fee,
			Status:      domain.SessionStatusScheduled,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.sessions.Create(ctx, tx, sess); err != nil {
			return err
		}

		_, err = s.wallets.Apply(ctx, tx, wallet.Mutation{
			OwnerID:   req.StudentID,
			Op:        domain.OpHold,
			Amount:    sess.Fee,
			Reference: domain.SettlementReference(sess.ID),
			Metadata: map[string]any{
				"session_id": sess.ID,
				"mentor_id":  sess.MentorID,
				"step":       "hold",
			},
		})
		if err != nil {
			return err
		}

		if req.WindowID != nil {
			if err := s.windows.SetBooked(ctx, tx, *req.WindowID, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("CreateBooking: %w", err)
	}

	logging.FromContext(ctx).Info("session booked",
		"session_id", sess.ID,
		"student_id", sess.StudentID,
		"mentor_id", sess.MentorID,
		"start", sess.StartTime,
		"end", sess.EndTime,
		"session_type", sess.SessionType,
		"fee", sess.Fee,
	)
	return sess, nil
}

func (s *Service) checkParties(ctx context.Context, studentID, mentorID uuid.UUID) error {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return fmt.Errorf("student: %w", err)
	}
	mentor, err := s.users.GetByID(ctx, mentorID)
	if err != nil {
		return fmt.Errorf("mentor: %w", err)
	}
	if student.Role != domain.RoleStudent {
		return domain.ErrNotStudent
	}
	if mentor.Role != domain.RoleMentor {
		return domain.ErrNotMentor
	}
	if student.Status != domain.UserStatusActive || mentor.Status != domain.UserStatusActive {
		return domain.ErrUserInactive
	}
	return nil
}

// Confirm records that the party holding role agrees the session happened.
func (s *Service) Confirm(ctx context.Context, sessionID, actor uuid.UUID, role domain.Role) (*domain.Session, error) {
	var sess *domain.Session
	err := repository.RunInTx(ctx, s.db, s.maxRetries, func(tx *sql.Tx) error {
		cur, err := s.sessions.GetForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := cur.Confirm(role, actor); err != nil {
			return err
		}
		cur.UpdatedAt = s.now().UTC()
		if err := s.sessions.Update(ctx, tx, cur); err != nil {
			return err
		}
		sess = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}

	logging.FromContext(ctx).Info("session confirmed",
		"session_id", sess.ID,
		"role", role,
		"verified", sess.Verified,
	)
	return sess, nil
}

// Start moves a scheduled session to ongoing and asks the room provisioner for
// a room. Provisioning is best-effort: its failure is logged and the session
// stays started.
func (s *Service) Start(ctx context.Context, sessionID, actor uuid.UUID) (*domain.Session, error) {
	log := logging.FromContext(ctx)

	sess, changed, err := s.transition(ctx, sessionID, actor, domain.ActionStart)
	if err != nil {
		return nil, fmt.Errorf("Start: %w", err)
	}
	if !changed || s.rooms == nil {
		return sess, nil
	}

	token, err := s.rooms.CreateRoom(ctx, sess.ID)
	if err != nil {
		log.Warn("room provisioning failed", "session_id", sess.ID, "error", err)
		return sess, nil
	}
	if err := s.sessions.SetRoomToken(ctx, sess.ID, token, s.now().UTC()); err != nil {
		log.Warn("saving room token failed", "session_id", sess.ID, "error", err)
		return sess, nil
	}
	sess.RoomToken = &token
	return sess, nil
}

// Complete ends an ongoing session and pays the mentor out of the student's
// escrow. Completing an already completed session changes nothing.
func (s *Service) Complete(ctx context.Context, sessionID, actor uuid.UUID) (*domain.Session, error) {
	sess, _, err := s.transition(ctx, sessionID, actor, domain.ActionComplete)
	if err != nil {
		return nil, fmt.Errorf("Complete: %w", err)
	}
	if sess.SettlementPending {
		s.finishSettlement(ctx, sess)
	}
	return sess, nil
}

// Cancel ends a scheduled session and refunds the student's escrow. A booked
// availability window is released.
func (s *Service) Cancel(ctx context.Context, sessionID, actor uuid.UUID) (*domain.Session, error) {
	sess, _, err := s.transition(ctx, sessionID, actor, domain.ActionCancel)
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	if sess.SettlementPending {
		s.finishSettlement(ctx, sess)
	}
	return sess, nil
}

type CancelResult struct {
	SessionID uuid.UUID
	Session   *domain.Session
	Err       error
}

// CancelMany cancels each session on its own; one failure does not stop the
// rest.
func (s *Service) CancelMany(ctx context.Context, actor uuid.UUID, ids []uuid.UUID) []CancelResult {
	results := make([]CancelResult, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		sess, err := s.Cancel(ctx, id, actor)
		results = append(results, CancelResult{SessionID: id, Session: sess, Err: err})
	}
	return results
}

// transition applies action under the session's row lock. changed is false
// when the session already sat in the target state.
func (s *Service) transition(ctx context.Context, sessionID, actor uuid.UUID, action domain.Action) (*domain.Session, bool, error) {
	var (
		sess    *domain.Session
		changed bool
	)
	err := repository.RunInTx(ctx, s.db, s.maxRetries, func(tx *sql.Tx) error {
		changed = false
		cur, err := s.sessions.GetForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !cur.AllowedActor(action, actor) {
			return domain.ErrForbidden
		}
		target, noop, err := cur.Transition(action)
		if err != nil {
			return err
		}
		if noop {
			sess = cur
			return nil
		}

		now := s.now().UTC().Truncate(time.Microsecond)
		cur.Status = target
		cur.UpdatedAt = now
		switch action {
		case domain.ActionStart:
			cur.ActualStartTime = &now
		case domain.ActionComplete:
			cur.ActualEndTime = &now
			cur.SettlementPending = true
			cur.RefreshVerified()
		case domain.ActionCancel:
			cur.SettlementPending = true
			if cur.WindowID != nil {
				if err := s.windows.SetBooked(ctx, tx, *cur.WindowID, false); err != nil {
					return err
				}
			}
		}

		if err := s.sessions.Update(ctx, tx, cur); err != nil {
			return err
		}
		sess = cur
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		logging.FromContext(ctx).Info("session transitioned",
			"session_id", sess.ID,
			"action", action,
			"status", sess.Status,
		)
	}
	return sess, changed, nil
}

// Get returns the session if actor is one of its parties.
func (s *Service) Get(ctx context.Context, sessionID, actor uuid.UUID) (*domain.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if !sess.IsParty(actor) {
		return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
	}
	return sess, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, filter domain.SessionFilter) ([]domain.Session, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, fmt.Errorf("List: status %q: %w", *filter.Status, domain.ErrInvalidRequest)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, fmt.Errorf("List: from must be before to: %w", domain.ErrInvalidRequest)
	}
	sessions, err := s.sessions.ListForUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return sessions, nil
}

// MentorStats is visible to the mentor only.
func (s *Service) MentorStats(ctx context.Context, mentorID, actor uuid.UUID, from, to *time.Time) (*domain.MentorStats, error) {
	if actor != mentorID {
		return nil, fmt.Errorf("MentorStats: %w", domain.ErrForbidden)
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, fmt.Errorf("MentorStats: from must be before to: %w", domain.ErrInvalidRequest)
	}
	mentor, err := s.users.GetByID(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("MentorStats: %w", err)
	}
	if mentor.Role != domain.RoleMentor {
		return nil, fmt.Errorf("MentorStats: %w", domain.ErrNotMentor)
	}
	st, err := s.sessions.MentorStats(ctx, mentorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("MentorStats: %w", err)
	}
	return st, nil
}
