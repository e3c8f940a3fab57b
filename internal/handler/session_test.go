package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/service/booking"
)

type fakeBookings struct {
	created  *booking.BookingRequest
	sessions map[uuid.UUID]*domain.Session
	err      error

	lastAction string
	lastRole   domain.Role
	filter     domain.SessionFilter
	statsFrom  *time.Time
	statsTo    *time.Time
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{sessions: map[uuid.UUID]*domain.Session{}}
}

func (f *fakeBookings) CreateBooking(_ context.Context, req booking.BookingRequest) (*domain.Session, error) {
	f.created = &req
	if f.err != nil {
		return nil, f.err
	}
	sess := &domain.Session{
		ID:          uuid.New(),
		StudentID:   req.StudentID,
		MentorID:    req.MentorID,
		SessionType: req.SessionType,
		StartTime:   req.Start,
		EndTime:     req.End,
		Rate:        req.Rate,
		Fee:         req.Rate,
		Status:      domain.SessionStatusScheduled,
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeBookings) lookup(id, actor uuid.UUID) (*domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	sess, ok := f.sessions[id]
	if !ok || !sess.IsParty(actor) {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (f *fakeBookings) Get(_ context.Context, id, actor uuid.UUID) (*domain.Session, error) {
	return f.lookup(id, actor)
}

func (f *fakeBookings) List(_ context.Context, userID uuid.UUID, filter domain.SessionFilter) ([]domain.Session, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Session
	for _, s := range f.sessions {
		if s.IsParty(userID) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeBookings) Confirm(_ context.Context, id, actor uuid.UUID, role domain.Role) (*domain.Session, error) {
	f.lastAction, f.lastRole = "confirm", role
	sess, err := f.lookup(id, actor)
	if err != nil {
		return nil, err
	}
	return sess, sess.Confirm(role, actor)
}

func (f *fakeBookings) Start(_ context.Context, id, actor uuid.UUID) (*domain.Session, error) {
	return f.transition("start", id, actor, domain.ActionStart)
}

func (f *fakeBookings) Complete(_ context.Context, id, actor uuid.UUID) (*domain.Session, error) {
	return f.transition("complete", id, actor, domain.ActionComplete)
}

func (f *fakeBookings) Cancel(_ context.Context, id, actor uuid.UUID) (*domain.Session, error) {
	return f.transition("cancel", id, actor, domain.ActionCancel)
}

func (f *fakeBookings) transition(name string, id, actor uuid.UUID, action domain.Action) (*domain.Session, error) {
	f.lastAction = name
	sess, err := f.lookup(id, actor)
	if err != nil {
		return nil, err
	}
	if !sess.AllowedActor(action, actor) {
		return nil, domain.ErrForbidden
	}
	target, _, err := sess.Transition(action)
	if err != nil {
		return nil, err
	}
	sess.Status = target
	return sess, nil
}

func (f *fakeBookings) CancelMany(ctx context.Context, actor uuid.UUID, ids []uuid.UUID) []booking.CancelResult {
	results := make([]booking.CancelResult, 0, len(ids))
	for _, id := range ids {
		sess, err := f.Cancel(ctx, id, actor)
		results = append(results, booking.CancelResult{SessionID: id, Session: sess, Err: err})
	}
	return results
}

func (f *fakeBookings) MentorStats(_ context.Context, mentorID, actor uuid.UUID, from, to *time.Time) (*domain.MentorStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	if actor != mentorID {
		return nil, domain.ErrForbidden
	}
	f.statsFrom, f.statsTo = from, to
	return &domain.MentorStats{Total: 3, Completed: 1, Cancelled: 1, Revenue: 5000}, nil
}

func (f *fakeBookings) seed(student, mentor uuid.UUID, status domain.SessionStatus) *domain.Session {
	start := time.Date(2030, 6, 4, 10, 0, 0, 0, time.UTC)
	sess := &domain.Session{
		ID:          uuid.New(),
		StudentID:   student,
		MentorID:    mentor,
		SessionType: domain.SessionTypeLive,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Rate:        500,
		Fee:         500,
		Status:      status,
	}
	f.sessions[sess.ID] = sess
	return sess
}

func sessionRouter(h *SessionHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/sessions", h.Create)
	r.Get("/sessions", h.List)
	r.Get("/sessions/calendar.ics", h.Calendar)
	r.Post("/sessions/cancel", h.CancelMany)
	r.Get("/sessions/{sessionID}", h.Get)
	r.Post("/sessions/{sessionID}/confirm", h.Confirm)
	r.Post("/sessions/{sessionID}/start", h.Start)
	r.Post("/sessions/{sessionID}/complete", h.Complete)
	r.Post("/sessions/{sessionID}/cancel", h.Cancel)
	r.Get("/mentors/{mentorID}/stats", h.MentorStats)
	return r
}

func TestCreateSession(t *testing.T) {
	student, mentor := uuid.New(), uuid.New()
	validBody := `{"mentor_id":"` + mentor.String() + `","start_time":"2030-06-04T10:00:00Z","end_time":"2030-06-04T11:00:00Z","rate":500,"session_type":"Live"}`

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{name: "booked", body: validBody, wantStatus: http.StatusCreated},
		{
			name:       "end before start",
			body:       `{"mentor_id":"` + mentor.String() + `","start_time":"2030-06-04T11:00:00Z","end_time":"2030-06-04T10:00:00Z","rate":500}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "zero rate",
			body:       `{"mentor_id":"` + mentor.String() + `","start_time":"2030-06-04T10:00:00Z","end_time":"2030-06-04T11:00:00Z","rate":0}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "missing mentor",
			body:       `{"start_time":"2030-06-04T10:00:00Z","end_time":"2030-06-04T11:00:00Z","rate":500}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{name: "slot taken", body: validBody, serviceErr: domain.ErrSlotConflict, wantStatus: http.StatusConflict, wantCode: "SLOT_CONFLICT"},
		{name: "broke student", body: validBody, serviceErr: domain.ErrInsufficientFunds, wantStatus: http.StatusUnprocessableEntity, wantCode: "INSUFFICIENT_FUNDS"},
		{name: "outside hours", body: validBody, serviceErr: domain.ErrInvalidWindow, wantStatus: http.StatusUnprocessableEntity, wantCode: "INVALID_WINDOW"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeBookings()
			fake.err = tc.serviceErr
			router := sessionRouter(NewSessionHandler(fake))

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, newRequest(http.MethodPost, "/sessions", tc.body, student, domain.RoleStudent))

			assert.Equal(t, tc.wantStatus, rr.Code)
			var out sessionDTO
			resp := decodeResponse(t, rr, &out)
			if tc.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
				return
			}
			require.NotNil(t, fake.created)
			assert.Equal(t, student, fake.created.StudentID)
			assert.Equal(t, mentor, fake.created.MentorID)
			assert.Equal(t, domain.SessionTypeLive, fake.created.SessionType)
			assert.Equal(t, "scheduled", out.Status)
			assert.Equal(t, int64(500), out.Fee)
		})
	}
}

func TestCreateSession_RequiresAuth(t *testing.T) {
	router := sessionRouter(NewSessionHandler(newFakeBookings()))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(http.MethodPost, "/sessions", `{}`, uuid.Nil, ""))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSessionActions(t *testing.T) {
	student, mentor, stranger := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name       string
		status     domain.SessionStatus
		path       string
		actor      uuid.UUID
		role       domain.Role
		wantStatus int
		wantCode   string
		wantState  string
	}{
		{"mentor starts", domain.SessionStatusScheduled, "start", mentor, domain.RoleMentor, http.StatusOK, "", "ongoing"},
		{"student cannot start", domain.SessionStatusScheduled, "start", student, domain.RoleStudent, http.StatusForbidden, "FORBIDDEN", ""},
		{"mentor completes", domain.SessionStatusOngoing, "complete", mentor, domain.RoleMentor, http.StatusOK, "", "completed"},
		{"complete from scheduled", domain.SessionStatusScheduled, "complete", mentor, domain.RoleMentor, http.StatusConflict, "INVALID_TRANSITION", ""},
		{"student cancels", domain.SessionStatusScheduled, "cancel", student, domain.RoleStudent, http.StatusOK, "", "cancelled"},
		{"cancel ongoing", domain.SessionStatusOngoing, "cancel", student, domain.RoleStudent, http.StatusConflict, "INVALID_TRANSITION", ""},
		{"stranger sees nothing", domain.SessionStatusScheduled, "cancel", stranger, domain.RoleStudent, http.StatusNotFound, "RESOURCE_NOT_FOUND", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeBookings()
			sess := fake.seed(student, mentor, tc.status)
			router := sessionRouter(NewSessionHandler(fake))

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, newRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/"+tc.path, "", tc.actor, tc.role))

			assert.Equal(t, tc.wantStatus, rr.Code)
			var out sessionDTO
			resp := decodeResponse(t, rr, &out)
			if tc.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
				return
			}
			assert.Equal(t, tc.wantState, out.Status)
		})
	}
}

func TestConfirmSession_PassesRole(t *testing.T) {
	student, mentor := uuid.New(), uuid.New()
	fake := newFakeBookings()
	sess := fake.seed(student, mentor, domain.SessionStatusCompleted)
	router := sessionRouter(NewSessionHandler(fake))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/confirm", "", mentor, domain.RoleMentor))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.RoleMentor, fake.lastRole)
	var out sessionDTO
	decodeResponse(t, rr, &out)
	assert.True(t, out.MentorConfirmed)
	assert.False(t, out.Verified)
}

func TestSessionAction_BadID(t *testing.T) {
	router := sessionRouter(NewSessionHandler(newFakeBookings()))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(http.MethodPost, "/sessions/not-a-uuid/start", "", uuid.New(), domain.RoleMentor))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelMany_ReportsPerSession(t *testing.T) {
	student, mentor := uuid.New(), uuid.New()
	fake := newFakeBookings()
	ok := fake.seed(student, mentor, domain.SessionStatusScheduled)
	running := fake.seed(student, mentor, domain.SessionStatusOngoing)
	router := sessionRouter(NewSessionHandler(fake))

	body := `{"session_ids":["` + ok.ID.String() + `","` + running.ID.String() + `"]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(http.MethodPost, "/sessions/cancel", body, student, domain.RoleStudent))

	require.Equal(t, http.StatusOK, rr.Code)
	var out []cancelResultDTO
	decodeResponse(t, rr, &out)
	require.Len(t, out, 2)

	assert.Equal(t, ok.ID, out[0].SessionID)
	require.NotNil(t, out[0].Session)
	assert.Equal(t, "cancelled", out[0].Session.Status)
	assert.Nil(t, out[0].Error)

	assert.Equal(t, running.ID, out[1].SessionID)
	assert.Nil(t, out[1].Session)
	require.NotNil(t, out[1].Error)
	assert.Equal(t, "INVALID_TRANSITION", out[1].Error.Code)
}

func TestCancelMany_RejectsEmptyList(t *testing.T) {
	router := sessionRouter(NewSessionHandler(newFakeBookings()))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(http.MethodPost, "/sessions/cancel", `{"session_ids":[]}`, uuid.New(), domain.RoleStudent))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListSessions_Filters(t *testing.T) {
	student := uuid.New()

	t.Run("valid filter", func(t *testing.T) {
		fake := newFakeBookings()
		fake.seed(student, uuid.New(), domain.SessionStatusScheduled)
		fake.seed(uuid.New(), uuid.New(), domain.SessionStatusScheduled)
		router := sessionRouter(NewSessionHandler(fake))

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, newRequest(http.MethodGet, "/sessions?status=scheduled&from=2030-06-01T00:00:00Z", "", student, domain.RoleStudent))

		require.Equal(t, http.StatusOK, rr.Code)
		var out []sessionDTO
		decodeResponse(t, rr, &out)
		assert.Len(t, out, 1)
		require.NotNil(t, fake.filter.Status)
		assert.Equal(t, domain.SessionStatusScheduled, *fake.filter.Status)
		require.NotNil(t, fake.filter.From)
		assert.Nil(t, fake.filter.To)
	})

	t.Run("bad status and time", func(t *testing.T) {
		router := sessionRouter(NewSessionHandler(newFakeBookings()))

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, newRequest(http.MethodGet, "/sessions?status=noshow&to=yesterday", "", student, domain.RoleStudent))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr, nil)
		assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	})
}

func TestCalendarExport(t *testing.T) {
	student, mentor := uuid.New(), uuid.New()
	fake := newFakeBookings()
	sess := fake.seed(student, mentor, domain.SessionStatusScheduled)
	router := sessionRouter(NewSessionHandler(fake))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(http.MethodGet, "/sessions/calendar.ics", "", student, domain.RoleStudent))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR"))
	assert.Contains(t, body, sess.ID.String())
}

func TestMentorStats(t *testing.T) {
	mentor := uuid.New()
	fake := newFakeBookings()
	router := sessionRouter(NewSessionHandler(fake))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest(http.MethodGet,
		"/mentors/"+mentor.String()+"/stats?from=2030-01-01T00:00:00Z&to=2030-02-01T00:00:00Z", "", mentor, domain.RoleMentor))

	require.Equal(t, http.StatusOK, rr.Code)
	var out domain.MentorStats
	decodeResponse(t, rr, &out)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, int64(5000), out.Revenue)
	require.NotNil(t, fake.statsFrom)
	require.NotNil(t, fake.statsTo)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), fake.statsFrom.UTC())
	assert.Equal(t, time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC), fake.statsTo.UTC())
}

func TestMentorStats_Rejected(t *testing.T) {
	mentor := uuid.New()

	tests := []struct {
		name     string
		actor    uuid.UUID
		query    string
		wantCode int
		wantErr  string
	}{
		{"another mentor", uuid.New(), "", http.StatusForbidden, "FORBIDDEN"},
		{"student", uuid.New(), "", http.StatusForbidden, "FORBIDDEN"},
		{"bad range bound", mentor, "?from=yesterday", http.StatusBadRequest, "VALIDATION_FAILED"},
		{"anonymous", uuid.Nil, "", http.StatusUnauthorized, "MISSING_TOKEN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := sessionRouter(NewSessionHandler(newFakeBookings()))

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, newRequest(http.MethodGet, "/mentors/"+mentor.String()+"/stats"+tc.query, "", tc.actor, domain.RoleMentor))

			assert.Equal(t, tc.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.wantErr)
		})
	}
}
