package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EntryKind string

const (
	EntryKindDeposit       EntryKind = "deposit"
	EntryKindWithdraw      EntryKind = "withdraw"
	EntryKindEscrowHold    EntryKind = "escrow_hold"
	EntryKindEscrowRelease EntryKind = "escrow_release"
)

func (k EntryKind) IsValid() bool {
	switch k {
	case EntryKindDeposit, EntryKindWithdraw, EntryKindEscrowHold, EntryKindEscrowRelease:
		return true
	}
	return false
}

// Bucket is the side of a wallet an entry posts to: available is
// Wallet.Balance, escrow is Wallet.Escrowed.
type Bucket string

const (
	BucketAvailable Bucket = "available"
	BucketEscrow    Bucket = "escrow"
)

type LedgerEntry struct {
	ID        uuid.UUID
	Seq       int64
	OwnerID   uuid.UUID
	Kind      EntryKind
	Bucket    Bucket
	Amount    int64
	Reference string
	Metadata  json.RawMessage
	PrevHash  string
	Hash      string
	CreatedAt time.Time
}

// ComputeHash chains the entry to its predecessor. CreatedAt is hashed at
// microsecond precision, which is what Postgres stores.
func (e *LedgerEntry) ComputeHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d|%s|", e.PrevHash, e.OwnerID, e.Kind, e.Bucket, e.Amount, e.Reference)
	h.Write(e.Metadata)
	fmt.Fprintf(h, "|%d", e.CreatedAt.UTC().UnixMicro())
	return hex.EncodeToString(h.Sum(nil))
}

// Seal normalises metadata and timestamp, links the entry to prevHash and
// fills Hash.
func (e *LedgerEntry) Seal(prevHash string) {
	if len(e.Metadata) == 0 {
		e.Metadata = json.RawMessage(`{}`)
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	e.PrevHash = prevHash
	e.Hash = e.ComputeHash()
}

// VerifyChain walks entries in sequence order and returns the index of the
// first entry whose link or hash does not match, or -1 when intact.
func VerifyChain(entries []LedgerEntry) int {
	prev := ""
	for i := range entries {
		if entries[i].PrevHash != prev || entries[i].ComputeHash() != entries[i].Hash {
			return i
		}
		prev = entries[i].Hash
	}
	return -1
}

// SumBuckets returns the signed totals per bucket.
func SumBuckets(entries []LedgerEntry) Balance {
	var b Balance
	for _, e := range entries {
		switch e.Bucket {
		case BucketAvailable:
			b.Balance += e.Amount
		case BucketEscrow:
			b.Escrowed += e.Amount
		}
	}
	return b
}

type LedgerFilter struct {
	Since *time.Time
	Until *time.Time
	Limit int
}
