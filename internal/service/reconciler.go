package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type pendingSettler interface {
	SettlePending(ctx context.Context, sessionID uuid.UUID) error
}

type pendingLister interface {
	ListSettlementPending(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type retryQueue interface {
	Dequeue(ctx context.Context) (uuid.UUID, bool, error)
}

type idempotencyPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Reconciler replays settlement for sessions whose transition committed but
// whose wallet steps did not all run. It drains the retry queue first, then
// sweeps the database for anything the queue missed.
type Reconciler struct {
	settler   pendingSettler
	sessions  pendingLister
	queue     retryQueue
	purger    idempotencyPurger
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewReconciler(
	settler pendingSettler,
	sessions pendingLister,
	queue retryQueue,
	purger idempotencyPurger,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *Reconciler {
	return &Reconciler{
		settler:   settler,
		sessions:  sessions,
		queue:     queue,
		purger:    purger,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("settlement reconciler started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("settlement reconciler stopped")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

type pollResult struct {
	settled int
	failed  int
	purged  int64
}

func (r *Reconciler) poll(ctx context.Context) pollResult {
	var res pollResult
	seen := make(map[uuid.UUID]bool)

	settle := func(id uuid.UUID, source string) {
		if seen[id] {
			return
		}
		seen[id] = true
		if err := r.settler.SettlePending(ctx, id); err != nil {
			res.failed++
			r.logger.Error("settlement replay failed", "session_id", id, "source", source, "error", err)
			return
		}
		res.settled++
	}

	for range r.batchSize {
		id, ok, err := r.queue.Dequeue(ctx)
		if err != nil {
			r.logger.Error("failed to read settlement queue", "error", err)
			if !ok {
				break
			}
			continue
		}
		if !ok {
			break
		}
		settle(id, "queue")
	}

	ids, err := r.sessions.ListSettlementPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch pending settlements", "error", err)
	}
	for _, id := range ids {
		settle(id, "sweep")
	}

	if r.purger != nil {
		n, err := r.purger.PurgeExpired(ctx, r.now().UTC())
		if err != nil {
			r.logger.Error("failed to purge idempotency cache", "error", err)
		}
		res.purged = n
	}

	if res.settled > 0 || res.failed > 0 {
		r.logger.Info("reconcile pass finished",
			"settled", res.settled,
			"failed", res.failed,
			"purged", res.purged,
		)
	}
	return res
}
