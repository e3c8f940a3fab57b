package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

const TestPassword = "password123"

func SeedTestUser(t *testing.T, db *sql.DB, email string, role domain.Role) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user %s: %v", email, err)
	}
	return u
}

func SetUserStatus(t *testing.T, db *sql.DB, userID uuid.UUID, status domain.UserStatus) {
	t.Helper()

	if _, err := db.Exec(`UPDATE users SET status = $1 WHERE id = $2`, status, userID); err != nil {
		t.Fatalf("set user status %s: %v", userID, err)
	}
}

// SeedTestWallet creates a wallet holding balance in its available bucket,
// backed by a sealed opening deposit so audits over it stay consistent.
func SeedTestWallet(t *testing.T, db *sql.DB, ownerID uuid.UUID, balance int64) {
	t.Helper()

	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO wallets (owner_id, balance, escrowed, version, created_at, updated_at)
		 VALUES ($1, $2, 0, 1, $3, $3)`,
		ownerID, balance, now,
	)
	if err != nil {
		t.Fatalf("seed test wallet %s: %v", ownerID, err)
	}
	if balance == 0 {
		return
	}

	e := domain.LedgerEntry{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      domain.EntryKindDeposit,
		Bucket:    domain.BucketAvailable,
		Amount:    balance,
		Reference: "seed:" + ownerID.String(),
		CreatedAt: now,
	}
	e.Seal("")
	_, err = db.Exec(
		`INSERT INTO ledger_entries (id, owner_id, kind, bucket, amount, reference, metadata, prev_hash, hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.OwnerID, e.Kind, e.Bucket, e.Amount, e.Reference, string(e.Metadata), e.PrevHash, e.Hash, e.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed opening deposit %s: %v", ownerID, err)
	}
}

func GetWalletBalance(t *testing.T, db *sql.DB, ownerID uuid.UUID) domain.Balance {
	t.Helper()

	var b domain.Balance
	err := db.QueryRow(`SELECT balance, escrowed FROM wallets WHERE owner_id = $1`, ownerID).Scan(&b.Balance, &b.Escrowed)
	if err == sql.ErrNoRows {
		return domain.Balance{}
	}
	if err != nil {
		t.Fatalf("get wallet balance %s: %v", ownerID, err)
	}
	return b
}

func CountLedgerEntries(t *testing.T, db *sql.DB, ownerID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for %s: %v", ownerID, err)
	}
	return count
}

func CountLedgerEntriesByReference(t *testing.T, db *sql.DB, reference string) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE reference = $1`, reference).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for %s: %v", reference, err)
	}
	return count
}

// TotalFunds sums balance and escrow across every wallet.
func TotalFunds(t *testing.T, db *sql.DB) int64 {
	t.Helper()

	var total int64
	err := db.QueryRow(`SELECT COALESCE(SUM(balance + escrowed), 0) FROM wallets`).Scan(&total)
	if err != nil {
		t.Fatalf("sum wallets: %v", err)
	}
	return total
}
