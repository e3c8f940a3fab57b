package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/logging"
	"github.com/josh-kwaku/session-escrow/internal/service/wallet"
)

// settlementSteps lists the wallet mutations a terminal session owes. All of
// them share the session reference, so the ledger's reference index lets each
// run at most once. Completion drains the student's escrow and credits the
// mentor; cancellation returns the escrow to the student's balance.
func settlementSteps(sess *domain.Session) ([]wallet.Mutation, error) {
	ref := domain.SettlementReference(sess.ID)
	meta := func(step string) map[string]any {
		return map[string]any{"session_id": sess.ID, "step": step}
	}

	switch sess.Status {
	case domain.SessionStatusCompleted:
		return []wallet.Mutation{
			{OwnerID: sess.StudentID, Op: domain.OpPayout, Amount: sess.Fee, Reference: ref, Metadata: meta("payout")},
			{OwnerID: sess.MentorID, Op: domain.OpDeposit, Amount: sess.Fee, Reference: ref, Metadata: meta("payout")},
		}, nil
	case domain.SessionStatusCancelled:
		return []wallet.Mutation{
			{OwnerID: sess.StudentID, Op: domain.OpRelease, Amount: sess.Fee, Reference: ref, Metadata: meta("refund")},
		}, nil
	default:
		return nil, fmt.Errorf("settlementSteps: status %s: %w", sess.Status, domain.ErrInvalidTransition)
	}
}

// settle runs every outstanding step and clears the pending flag. A step
// that reports ErrDuplicateReference already ran and is skipped.
func (s *Service) settle(ctx context.Context, sess *domain.Session) error {
	steps, err := settlementSteps(sess)
	if err != nil {
		return fmt.Errorf("settle: %w", err)
	}

	for _, m := range steps {
		_, err := s.wallets.Execute(ctx, m)
		if errors.Is(err, domain.ErrDuplicateReference) {
			continue
		}
		if err != nil {
			return fmt.Errorf("settle: %s %s: %w", m.Op, m.OwnerID, err)
		}
	}

	if err := s.sessions.ClearSettlementPending(ctx, sess.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	sess.SettlementPending = false
	return nil
}

// finishSettlement settles sess after its transition committed. On failure the
// session keeps its pending flag and is queued for the reconciler; the caller
// still gets the advanced session.
func (s *Service) finishSettlement(ctx context.Context, sess *domain.Session) {
	log := logging.FromContext(ctx)

	err := s.settle(ctx, sess)
	if err == nil {
		log.Info("session settled", "session_id", sess.ID, "status", sess.Status, "fee", sess.Fee)
		return
	}

	log.Error("settlement failed",
		"session_id", sess.ID,
		"status", sess.Status,
		"error", fmt.Errorf("%w: %w", domain.ErrSettlementPending, err),
	)
	if s.queue == nil {
		return
	}
	if qerr := s.queue.Enqueue(ctx, sess.ID); qerr != nil {
		log.Error("enqueue settlement failed", "session_id", sess.ID, "error", qerr)
	}
}

// SettlePending replays settlement for a session left pending by an earlier
// failure. Sessions that are not pending are ignored.
func (s *Service) SettlePending(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("SettlePending: %w", err)
	}
	if !sess.SettlementPending {
		return nil
	}
	if err := s.settle(ctx, sess); err != nil {
		if terr := s.sessions.TouchSettlementPending(ctx, sess.ID, s.now()); terr != nil {
			logging.FromContext(ctx).Warn("touch pending settlement failed", "session_id", sess.ID, "error", terr)
		}
		return fmt.Errorf("SettlePending: %w: %w", domain.ErrSettlementPending, err)
	}

	logging.FromContext(ctx).Info("pending settlement replayed", "session_id", sess.ID, "status", sess.Status)
	return nil
}
