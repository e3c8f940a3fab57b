package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/session-escrow/internal/domain"
)

const ledgerColumns = `id, seq, owner_id, kind, bucket, amount, reference, metadata,
	prev_hash, hash, created_at`

// LedgerRepository is the append-only entry log. It does not check business
// rules; callers must hold the owner's wallet lock while appending so the
// hash chain is extended by one writer at a time.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Append(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	if entry.Amount == 0 {
		return fmt.Errorf("Append: %w", domain.ErrInvalidAmount)
	}

	var prevHash string
	err := tx.QueryRowContext(ctx,
		`SELECT hash FROM ledger_entries WHERE owner_id = $1 ORDER BY seq DESC LIMIT 1`,
		entry.OwnerID,
	).Scan(&prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("Append: last hash: %w", err)
	}

	entry.Seal(prevHash)

	err = tx.QueryRowContext(ctx,
		`INSERT INTO ledger_entries (
			id, owner_id, kind, bucket, amount, reference, metadata,
			prev_hash, hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq`,
		entry.ID, entry.OwnerID, entry.Kind, entry.Bucket, entry.Amount,
		entry.Reference, string(entry.Metadata), entry.PrevHash, entry.Hash, entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		if code, _ := pqCode(err); code == codeUniqueViolation {
			return fmt.Errorf("Append: %s: %w", entry.Reference, domain.ErrDuplicateReference)
		}
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

// HasReference reports whether the owner already has an entry of kind
// recorded under reference.
func (r *LedgerRepository) HasReference(ctx context.Context, q Querier, ownerID uuid.UUID, reference string, kind domain.EntryKind) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM ledger_entries
			WHERE owner_id = $1 AND reference = $2 AND kind = $3
		)`,
		ownerID, reference, kind,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("HasReference: %w", err)
	}
	return exists, nil
}

func (r *LedgerRepository) List(ctx context.Context, ownerID uuid.UUID, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE owner_id = $1
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY seq
		LIMIT $4`,
		ownerID, filter.Since, filter.Until, nullableLimit(filter.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return entries, nil
}

// ListChain returns every entry of the owner in append order.
func (r *LedgerRepository) ListChain(ctx context.Context, q Querier, ownerID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE owner_id = $1 ORDER BY seq`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListChain: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ListChain: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListChain: rows: %w", err)
	}
	return entries, nil
}

// SumAsOf returns the bucket totals of every entry recorded at or before at.
func (r *LedgerRepository) SumAsOf(ctx context.Context, ownerID uuid.UUID, at time.Time) (domain.Balance, error) {
	var b domain.Balance
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(amount) FILTER (WHERE bucket = 'available'), 0),
			COALESCE(SUM(amount) FILTER (WHERE bucket = 'escrow'), 0)
		FROM ledger_entries
		WHERE owner_id = $1 AND created_at <= $2`,
		ownerID, at,
	).Scan(&b.Balance, &b.Escrowed)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("SumAsOf: %w", err)
	}
	return b, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var (
		e        domain.LedgerEntry
		metadata []byte
	)
	err := s.Scan(
		&e.ID, &e.Seq, &e.OwnerID, &e.Kind, &e.Bucket, &e.Amount,
		&e.Reference, &metadata, &e.PrevHash, &e.Hash, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Metadata = metadata
	return &e, nil
}
