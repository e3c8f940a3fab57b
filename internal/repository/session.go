package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/session-escrow/internal/domain"
)

const sessionColumns = `id, student_id, mentor_id, window_id, session_type, start_time, end_time,
	rate, fee, status, student_confirmed, mentor_confirmed, verified, settlement_pending,
	room_token, actual_start_time, actual_end_time, created_at, updated_at`

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts s. A unique or exclusion violation means another active
// session already holds an overlapping slot for the mentor.
func (r *SessionRepository) Create(ctx context.Context, tx *sql.Tx, s *domain.Session) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (
			id, student_id, mentor_id, window_id, session_type, start_time, end_time,
			rate, fee, status, student_confirmed, mentor_confirmed, verified, settlement_pending,
			room_token, actual_start_time, actual_end_time, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		s.ID, s.StudentID, s.MentorID, s.WindowID, s.SessionType, s.StartTime, s.EndTime,
		s.Rate, s.Fee, s.Status, s.StudentConfirmed, s.MentorConfirmed, s.Verified, s.SettlementPending,
		s.RoomToken, s.ActualStartTime, s.ActualEndTime, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("Create: %w", domain.ErrSlotConflict)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id,
	)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Session, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id,
	)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return s, nil
}

// Update persists the mutable lifecycle fields of s.
func (r *SessionRepository) Update(ctx context.Context, tx *sql.Tx, s *domain.Session) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET
			status = $1, student_confirmed = $2, mentor_confirmed = $3, verified = $4,
			settlement_pending = $5, actual_start_time = $6, actual_end_time = $7, updated_at = $8
		WHERE id = $9`,
		s.Status, s.StudentConfirmed, s.MentorConfirmed, s.Verified,
		s.SettlementPending, s.ActualStartTime, s.ActualEndTime, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	return nil
}

// HasOverlap reports whether the mentor has an active session intersecting
// [start, end). Touching ranges do not count.
func (r *SessionRepository) HasOverlap(ctx context.Context, q Querier, mentorID uuid.UUID, start, end time.Time) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE mentor_id = $1
				AND status IN ('scheduled', 'ongoing')
				AND start_time < $3
				AND end_time > $2
		)`,
		mentorID, start, end,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("HasOverlap: %w", err)
	}
	return exists, nil
}

func (r *SessionRepository) ClearSettlementPending(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET settlement_pending = false, updated_at = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("ClearSettlementPending: %w", err)
	}
	return nil
}

// TouchSettlementPending moves a still-pending session to the back of the
// sweep order.
func (r *SessionRepository) TouchSettlementPending(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = $1 WHERE id = $2 AND settlement_pending`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("TouchSettlementPending: %w", err)
	}
	return nil
}

func (r *SessionRepository) SetRoomToken(ctx context.Context, id uuid.UUID, token string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET room_token = $1, updated_at = $2 WHERE id = $3`,
		token, now, id,
	)
	if err != nil {
		return fmt.Errorf("SetRoomToken: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListSettlementPending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE settlement_pending ORDER BY updated_at, id LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListSettlementPending: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListSettlementPending: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSettlementPending: rows: %w", err)
	}
	return ids, nil
}

// ListForUser returns sessions where userID is either party, ordered by start.
// From/To select sessions intersecting the range.
func (r *SessionRepository) ListForUser(ctx context.Context, userID uuid.UUID, filter domain.SessionFilter) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		WHERE (student_id = $1 OR mentor_id = $1)
			AND ($2::text IS NULL OR status = $2)
			AND ($3::timestamptz IS NULL OR end_time > $3)
			AND ($4::timestamptz IS NULL OR start_time < $4)
		ORDER BY start_time`,
		userID, filter.Status, filter.From, filter.To,
	)
	if err != nil {
		return nil, fmt.Errorf("ListForUser: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("ListForUser: scan: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListForUser: rows: %w", err)
	}
	return sessions, nil
}

// MentorStats aggregates sessions starting in [from, to); nil bounds are open.
func (r *SessionRepository) MentorStats(ctx context.Context, mentorID uuid.UUID, from, to *time.Time) (*domain.MentorStats, error) {
	var st domain.MentorStats
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM(fee) FILTER (WHERE status = 'completed' AND NOT settlement_pending), 0)
		FROM sessions
		WHERE mentor_id = $1
			AND ($2::timestamptz IS NULL OR start_time >= $2)
			AND ($3::timestamptz IS NULL OR start_time < $3)`,
		mentorID, from, to,
	).Scan(&st.Total, &st.Completed, &st.Cancelled, &st.Revenue)
	if err != nil {
		return nil, fmt.Errorf("MentorStats: %w", err)
	}
	return &st, nil
}

func scanSession(s scanner) (*domain.Session, error) {
	var ss domain.Session
	err := s.Scan(
		&ss.ID, &ss.StudentID, &ss.MentorID, &ss.WindowID, &ss.SessionType, &ss.StartTime, &ss.EndTime,
		&ss.Rate, &ss.Fee, &ss.Status, &ss.StudentConfirmed, &ss.MentorConfirmed, &ss.Verified,
		&ss.SettlementPending, &ss.RoomToken, &ss.ActualStartTime, &ss.ActualEndTime,
		&ss.CreatedAt, &ss.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ss, nil
}
