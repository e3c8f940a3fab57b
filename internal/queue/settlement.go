package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const settlementKey = "settlement_queue"

// Connect returns a client for url, or nil when url is empty or the server
// does not answer. Callers run without the queue in that case.
func Connect(ctx context.Context, url string, logger *slog.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("invalid redis url, continuing without settlement queue", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis connection failed, continuing without settlement queue", "error", err)
		rdb.Close()
		return nil
	}
	logger.Info("redis connection established", "addr", opts.Addr)
	return rdb
}

// SettlementQueue is a FIFO of session ids whose settlement needs a retry.
// A queue built on a nil client accepts and returns nothing.
type SettlementQueue struct {
	rdb *redis.Client
}

func NewSettlementQueue(rdb *redis.Client) *SettlementQueue {
	return &SettlementQueue{rdb: rdb}
}

func (q *SettlementQueue) Enabled() bool {
	return q.rdb != nil
}

func (q *SettlementQueue) Enqueue(ctx context.Context, sessionID uuid.UUID) error {
	if q.rdb == nil {
		return nil
	}
	if err := q.rdb.RPush(ctx, settlementKey, sessionID.String()).Err(); err != nil {
		return fmt.Errorf("Enqueue: %w", err)
	}
	return nil
}

// Dequeue pops the oldest id. ok is false once the queue is empty. A
// malformed entry is consumed and reported with ok true.
func (q *SettlementQueue) Dequeue(ctx context.Context) (id uuid.UUID, ok bool, err error) {
	if q.rdb == nil {
		return uuid.Nil, false, nil
	}
	val, err := q.rdb.LPop(ctx, settlementKey).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("Dequeue: %w", err)
	}
	id, err = uuid.Parse(val)
	if err != nil {
		return uuid.Nil, true, fmt.Errorf("Dequeue: entry %q: %w", val, err)
	}
	return id, true, nil
}

func (q *SettlementQueue) Ping(ctx context.Context) error {
	if q.rdb == nil {
		return nil
	}
	if err := q.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Ping: %w", err)
	}
	return nil
}
