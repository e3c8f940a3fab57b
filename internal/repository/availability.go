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

const windowColumns = `id, mentor_id, start_time, end_time, is_booked, created_at`

type AvailabilityRepository struct {
	db *sql.DB
}

func NewAvailabilityRepository(db *sql.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) Create(ctx context.Context, w *domain.AvailabilityWindow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO availability_windows (id, mentor_id, start_time, end_time, is_booked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.MentorID, w.StartTime, w.EndTime, w.IsBooked, w.CreatedAt,
	)
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("Create: window overlaps an existing window: %w", domain.ErrSlotConflict)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AvailabilityRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.AvailabilityWindow, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+windowColumns+` FROM availability_windows WHERE id = $1 FOR UPDATE`, id,
	)
	w, err := scanWindow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return w, nil
}

func (r *AvailabilityRepository) SetBooked(ctx context.Context, tx *sql.Tx, id uuid.UUID, booked bool) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE availability_windows SET is_booked = $1 WHERE id = $2`, booked, id,
	)
	if err != nil {
		return fmt.Errorf("SetBooked: %w", err)
	}
	return nil
}

// ListByMentor returns windows intersecting [from, to), ordered by start.
func (r *AvailabilityRepository) ListByMentor(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]domain.AvailabilityWindow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+windowColumns+` FROM availability_windows
		WHERE mentor_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time`,
		mentorID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByMentor: %w", err)
	}
	defer rows.Close()

	var windows []domain.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByMentor: scan: %w", err)
		}
		windows = append(windows, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByMentor: rows: %w", err)
	}
	return windows, nil
}

// DeleteUnbooked removes a window the mentor owns, unless a booking holds it.
func (r *AvailabilityRepository) DeleteUnbooked(ctx context.Context, id, mentorID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM availability_windows WHERE id = $1 AND mentor_id = $2 AND NOT is_booked`,
		id, mentorID,
	)
	if err != nil {
		return fmt.Errorf("DeleteUnbooked: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteUnbooked: rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var booked bool
	err = r.db.QueryRowContext(ctx,
		`SELECT is_booked FROM availability_windows WHERE id = $1 AND mentor_id = $2`,
		id, mentorID,
	).Scan(&booked)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("DeleteUnbooked: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("DeleteUnbooked: %w", err)
	}
	return fmt.Errorf("DeleteUnbooked: %w", domain.ErrWindowBooked)
}

func scanWindow(s scanner) (*domain.AvailabilityWindow, error) {
	var w domain.AvailabilityWindow
	err := s.Scan(&w.ID, &w.MentorID, &w.StartTime, &w.EndTime, &w.IsBooked, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
