package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/repository"
)

type fakeWindows struct {
	created []domain.AvailabilityWindow
	err     error
}

func (f *fakeWindows) Create(_ context.Context, w *domain.AvailabilityWindow) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *w)
	return nil
}

func (f *fakeWindows) ListByMentor(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]domain.AvailabilityWindow, error) {
	return f.created, nil
}

func (f *fakeWindows) DeleteUnbooked(_ context.Context, _, _ uuid.UUID) error {
	return f.err
}

type fakeOverlap struct {
	busy bool
}

func (f *fakeOverlap) HasOverlap(_ context.Context, _ repository.Querier, _ uuid.UUID, _, _ time.Time) (bool, error) {
	return f.busy, nil
}

type fakeUsers map[uuid.UUID]*domain.User

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func newTestService(users fakeUsers, windows *fakeWindows, overlap *fakeOverlap) *Service {
	p := Policy{DayStart: 9 * time.Hour, DayEnd: 18 * time.Hour, Location: time.UTC}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return NewService(windows, overlap, users, nil, p).WithClock(func() time.Time { return now })
}

func TestCreateWindow(t *testing.T) {
	mentor := &domain.User{ID: uuid.New(), Role: domain.RoleMentor, Status: domain.UserStatusActive}
	student := &domain.User{ID: uuid.New(), Role: domain.RoleStudent, Status: domain.UserStatusActive}
	suspended := &domain.User{ID: uuid.New(), Role: domain.RoleMentor, Status: domain.UserStatusSuspended}
	users := fakeUsers{mentor.ID: mentor, student.ID: student, suspended.ID: suspended}

	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		userID  uuid.UUID
		end     time.Time
		wantErr error
	}{
		{"mentor inside hours", mentor.ID, start.Add(2 * time.Hour), nil},
		{"student cannot publish", student.ID, start.Add(time.Hour), domain.ErrNotMentor},
		{"inactive mentor", suspended.ID, start.Add(time.Hour), domain.ErrUserInactive},
		{"unknown user", uuid.New(), start.Add(time.Hour), domain.ErrNotFound},
		{"past closing time", mentor.ID, start.Add(9 * time.Hour), domain.ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows := &fakeWindows{}
			svc := newTestService(users, windows, &fakeOverlap{})

			w, err := svc.CreateWindow(context.Background(), tt.userID, start, tt.end)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, windows.created)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.userID, w.MentorID)
			assert.False(t, w.IsBooked)
			assert.Len(t, windows.created, 1)
		})
	}
}

func TestListWindows_RejectsInvertedRange(t *testing.T) {
	svc := newTestService(fakeUsers{}, &fakeWindows{}, &fakeOverlap{})
	now := time.Now()

	_, err := svc.ListWindows(context.Background(), uuid.New(), now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestDeleteWindow_PropagatesBooked(t *testing.T) {
	svc := newTestService(fakeUsers{}, &fakeWindows{err: domain.ErrWindowBooked}, &fakeOverlap{})

	err := svc.DeleteWindow(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrWindowBooked)
}

func TestIsFree(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	free, err := newTestService(fakeUsers{}, &fakeWindows{}, &fakeOverlap{}).
		IsFree(context.Background(), uuid.New(), start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, free)

	free, err = newTestService(fakeUsers{}, &fakeWindows{}, &fakeOverlap{busy: true}).
		IsFree(context.Background(), uuid.New(), start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, free)

	_, err = newTestService(fakeUsers{}, &fakeWindows{}, &fakeOverlap{}).
		IsFree(context.Background(), uuid.New(), start, start)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}
