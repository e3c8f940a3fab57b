package calendar

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

func TestExport(t *testing.T) {
	student, mentor := uuid.New(), uuid.New()
	start := time.Date(2030, 6, 4, 10, 0, 0, 0, time.UTC)
	token := "abc"

	sessions := []domain.Session{
		{
			ID: uuid.New(), StudentID: student, MentorID: mentor, SessionType: domain.SessionTypeLive,
			StartTime: start, EndTime: start.Add(time.Hour), Fee: 100,
			Status: domain.SessionStatusScheduled, CreatedAt: start.Add(-48 * time.Hour), UpdatedAt: start.Add(-48 * time.Hour),
		},
		{
			ID: uuid.New(), StudentID: student, MentorID: mentor, SessionType: domain.SessionTypeFixed,
			StartTime: start.Add(2 * time.Hour), EndTime: start.Add(3 * time.Hour), Fee: 300,
			Status: domain.SessionStatusCancelled, CreatedAt: start, UpdatedAt: start,
		},
		{
			ID: uuid.New(), StudentID: student, MentorID: mentor, SessionType: domain.SessionTypeLive,
			StartTime: start.Add(4 * time.Hour), EndTime: start.Add(5 * time.Hour), Fee: 100,
			Status: domain.SessionStatusCompleted, RoomToken: &token, CreatedAt: start, UpdatedAt: start,
		},
	}

	out := Export(sessions, mentor)

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, cal.Events(), 2)

	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, sessions[0].ID.String())
	assert.NotContains(t, out, sessions[1].ID.String())
	assert.Contains(t, out, "STATUS:TENTATIVE")
	assert.Contains(t, out, "STATUS:CONFIRMED")
	assert.Contains(t, out, "room:abc")
	assert.Contains(t, out, "with student "+student.String()[:8])
}

func TestExport_Empty(t *testing.T) {
	out := Export(nil, uuid.New())

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, cal.Events())
}
