package booking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

func TestSettlementSteps(t *testing.T) {
	sess := &domain.Session{ID: uuid.New(), StudentID: uuid.New(), MentorID: uuid.New(), Fee: 250}
	ref := domain.SettlementReference(sess.ID)

	t.Run("completed pays the mentor", func(t *testing.T) {
		sess.Status = domain.SessionStatusCompleted
		steps, err := settlementSteps(sess)
		require.NoError(t, err)
		require.Len(t, steps, 2)

		assert.Equal(t, sess.StudentID, steps[0].OwnerID)
		assert.Equal(t, domain.OpPayout, steps[0].Op)
		assert.Equal(t, sess.MentorID, steps[1].OwnerID)
		assert.Equal(t, domain.OpDeposit, steps[1].Op)
		for _, s := range steps {
			assert.Equal(t, ref, s.Reference)
			assert.Equal(t, int64(250), s.Amount)
		}
	})

	t.Run("cancelled refunds the student", func(t *testing.T) {
		sess.Status = domain.SessionStatusCancelled
		steps, err := settlementSteps(sess)
		require.NoError(t, err)
		require.Len(t, steps, 1)
		assert.Equal(t, sess.StudentID, steps[0].OwnerID)
		assert.Equal(t, domain.OpRelease, steps[0].Op)
		assert.Equal(t, ref, steps[0].Reference)
	})

	for _, st := range []domain.SessionStatus{domain.SessionStatusScheduled, domain.SessionStatusOngoing} {
		t.Run(string(st)+" owes nothing", func(t *testing.T) {
			sess.Status = st
			_, err := settlementSteps(sess)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		})
	}
}
