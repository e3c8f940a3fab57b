package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

type fakeDirectory struct {
	mentors       []domain.User
	limit, offset int
}

func (f *fakeDirectory) ListActiveMentors(_ context.Context, limit, offset int) ([]domain.User, error) {
	f.limit, f.offset = limit, offset
	return f.mentors, nil
}

func TestListMentors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", http.StatusOK, defaultMentorPage, 0},
		{"explicit page", "?limit=10&offset=20", http.StatusOK, 10, 20},
		{"oversized limit clamped", "?limit=1000", http.StatusOK, defaultMentorPage, 0},
		{"bad offset", "?offset=-3", http.StatusBadRequest, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeDirectory{mentors: []domain.User{
				{ID: uuid.New(), Name: "Ada", Email: "ada@example.com", PasswordHash: "secret", Role: domain.RoleMentor},
			}}

			rr := httptest.NewRecorder()
			NewMentorHandler(fake).List(rr, newRequest(http.MethodGet, "/mentors"+tc.query, "", uuid.New(), domain.RoleStudent))

			require.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, tc.wantLimit, fake.limit)
			assert.Equal(t, tc.wantOffset, fake.offset)
			assert.NotContains(t, rr.Body.String(), "secret")
			assert.NotContains(t, rr.Body.String(), "ada@example.com")

			var out []mentorDTO
			decodeResponse(t, rr, &out)
			require.Len(t, out, 1)
			assert.Equal(t, "Ada", out[0].Name)
		})
	}
}
