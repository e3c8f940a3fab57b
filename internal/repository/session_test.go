package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

func newTestSession() *domain.Session {
	start := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)
	now := time.Date(2030, 1, 7, 8, 0, 0, 0, time.UTC)
	return &domain.Session{
		ID:          uuid.New(),
		StudentID:   uuid.New(),
		MentorID:    uuid.New(),
		SessionType: domain.SessionTypeLive,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Rate:        100,
		Fee:         100,
		Status:      domain.SessionStatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSessionRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		dbErr   error
		wantErr error
	}{
		{"inserted", nil, nil},
		{"exclusion violation", &pq.Error{Code: "23P01", Constraint: "sessions_no_overlap"}, domain.ErrSlotConflict},
		{"unique violation", &pq.Error{Code: "23505", Constraint: "uq_sessions_mentor_slot"}, domain.ErrSlotConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			repo := NewSessionRepository(db)
			s := newTestSession()

			mock.ExpectBegin()
			exec := mock.ExpectExec("INSERT INTO sessions").
				WithArgs(s.ID, s.StudentID, s.MentorID, nil, s.SessionType, s.StartTime, s.EndTime,
					s.Rate, s.Fee, s.Status, false, false, false, false,
					nil, nil, nil, s.CreatedAt, s.UpdatedAt)
			if tc.dbErr != nil {
				exec.WillReturnError(tc.dbErr)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(1, 1))
			}

			tx, err := db.Begin()
			require.NoError(t, err)

			err = repo.Create(context.Background(), tx, s)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSessionRepository_HasOverlap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(db)
	mentorID := uuid.New()
	start := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(mentorID, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(mentorID, end, end.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	busy, err := repo.HasOverlap(context.Background(), db, mentorID, start, end)
	require.NoError(t, err)
	assert.True(t, busy)

	busy, err = repo.HasOverlap(context.Background(), db, mentorID, end, end.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, busy)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_UpdateMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(db)
	s := newTestSession()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sessions SET").WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Begin()
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, s)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(db)
	s := newTestSession()
	token := "room-123"

	cols := []string{
		"id", "student_id", "mentor_id", "window_id", "session_type", "start_time", "end_time",
		"rate", "fee", "status", "student_confirmed", "mentor_confirmed", "verified", "settlement_pending",
		"room_token", "actual_start_time", "actual_end_time", "created_at", "updated_at",
	}

	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id = \\$1").
		WithArgs(s.ID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			s.ID.String(), s.StudentID.String(), s.MentorID.String(), nil, "Live", s.StartTime, s.EndTime,
			s.Rate, s.Fee, "ongoing", true, false, false, false,
			token, s.StartTime, nil, s.CreatedAt, s.UpdatedAt,
		))
	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id = \\$1").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, domain.SessionStatusOngoing, got.Status)
	assert.Nil(t, got.WindowID)
	require.NotNil(t, got.RoomToken)
	assert.Equal(t, token, *got.RoomToken)
	require.NotNil(t, got.ActualStartTime)
	assert.Nil(t, got.ActualEndTime)
	assert.True(t, got.StudentConfirmed)

	_, err = repo.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_MentorStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(db)
	mentorID := uuid.New()
	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM sessions").
		WithArgs(mentorID, from, nil).
		WillReturnRows(sqlmock.NewRows([]string{"count", "completed", "cancelled", "revenue"}).
			AddRow(4, 2, 1, int64(900)))

	st, err := repo.MentorStats(context.Background(), mentorID, &from, nil)
	require.NoError(t, err)
	assert.Equal(t, &domain.MentorStats{Total: 4, Completed: 2, Cancelled: 1, Revenue: 900}, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}
