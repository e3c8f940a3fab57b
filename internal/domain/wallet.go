package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type Wallet struct {
	OwnerID   uuid.UUID
	Balance   int64
	Escrowed  int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Balance struct {
	Balance  int64 `json:"balance"`
	Escrowed int64 `json:"escrowed"`
}

func (b Balance) Total() int64 {
	return b.Balance + b.Escrowed
}

func (w Wallet) Snapshot() Balance {
	return Balance{Balance: w.Balance, Escrowed: w.Escrowed}
}

type Operation string

const (
	OpDeposit  Operation = "deposit"
	OpWithdraw Operation = "withdraw"
	OpHold     Operation = "hold"
	OpRelease  Operation = "release"
	OpPayout   Operation = "payout"
)

type Posting struct {
	Kind   EntryKind
	Bucket Bucket
	Amount int64
}

// Postings lists the ledger lines an operation writes. Hold and release move
// funds between buckets of the same wallet; payout only drains escrow, the
// counterparty is credited by a separate deposit.
func (op Operation) Postings(amt int64) ([]Posting, error) {
	switch op {
	case OpDeposit:
		return []Posting{{EntryKindDeposit, BucketAvailable, amt}}, nil
	case OpWithdraw:
		return []Posting{{EntryKindWithdraw, BucketAvailable, -amt}}, nil
	case OpHold:
		return []Posting{
			{EntryKindEscrowHold, BucketAvailable, -amt},
			{EntryKindEscrowHold, BucketEscrow, amt},
		}, nil
	case OpRelease:
		return []Posting{
			{EntryKindEscrowRelease, BucketEscrow, -amt},
			{EntryKindEscrowRelease, BucketAvailable, amt},
		}, nil
	case OpPayout:
		return []Posting{{EntryKindEscrowRelease, BucketEscrow, -amt}}, nil
	default:
		return nil, fmt.Errorf("Postings: unknown operation %q: %w", op, ErrInvalidRequest)
	}
}

// Apply returns the wallet as it would be after op. The receiver is not
// modified.
func (w Wallet) Apply(op Operation, amt int64) (Wallet, error) {
	if amt <= 0 {
		return w, fmt.Errorf("Apply: %w", ErrInvalidAmount)
	}
	postings, err := op.Postings(amt)
	if err != nil {
		return w, fmt.Errorf("Apply: %w", err)
	}

	next := w
	for _, p := range postings {
		bucket := &next.Balance
		if p.Bucket == BucketEscrow {
			bucket = &next.Escrowed
		}
		if p.Amount > 0 && *bucket > math.MaxInt64-p.Amount {
			return w, fmt.Errorf("Apply: %s %d overflows %s: %w", op, amt, p.Bucket, ErrInvalidAmount)
		}
		*bucket += p.Amount
	}
	// Total must stay representable.
	if next.Balance > 0 && next.Escrowed > math.MaxInt64-next.Balance {
		return w, fmt.Errorf("Apply: %s %d overflows total: %w", op, amt, ErrInvalidAmount)
	}
	if next.Balance < 0 || next.Escrowed < 0 {
		return w, fmt.Errorf("Apply: %s %d: %w", op, amt, ErrInsufficientFunds)
	}
	return next, nil
}
