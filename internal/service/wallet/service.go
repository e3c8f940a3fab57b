package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/logging"
	"github.com/josh-kwaku/session-escrow/internal/repository"
)

const defaultMaxRetries = 5

type walletRepo interface {
	GetByOwner(ctx context.Context, q repository.Querier, ownerID uuid.UUID) (*domain.Wallet, error)
	GetOrCreateForUpdate(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, now time.Time) (*domain.Wallet, error)
	UpdateBalances(ctx context.Context, tx *sql.Tx, w *domain.Wallet) error
}

type ledgerRepo interface {
	Append(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	HasReference(ctx context.Context, q repository.Querier, ownerID uuid.UUID, reference string, kind domain.EntryKind) (bool, error)
	List(ctx context.Context, ownerID uuid.UUID, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)
	ListChain(ctx context.Context, q repository.Querier, ownerID uuid.UUID) ([]domain.LedgerEntry, error)
	SumAsOf(ctx context.Context, ownerID uuid.UUID, at time.Time) (domain.Balance, error)
}

// Mutation is one balance-changing operation on a single wallet.
type Mutation struct {
	OwnerID   uuid.UUID
	Op        domain.Operation
	Amount    int64
	Reference string
	Metadata  map[string]any
}

type Service struct {
	wallets    walletRepo
	ledger     ledgerRepo
	db         *sql.DB
	now        func() time.Time
	maxRetries uint64
}

func NewService(wallets walletRepo, ledger ledgerRepo, db *sql.DB) *Service {
	return &Service{
		wallets:    wallets,
		ledger:     ledger,
		db:         db,
		now:        time.Now,
		maxRetries: defaultMaxRetries,
	}
}

// WithClock replaces the time source used to stamp wallets and entries.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Apply performs m inside tx. The wallet is created on first use and stays
// row-locked until tx ends, so the sufficiency check, the balance write and
// the ledger append are atomic with respect to other mutations of the same
// owner. A mutation whose reference was already recorded for the same kind
// fails with ErrDuplicateReference and changes nothing.
func (s *Service) Apply(ctx context.Context, tx *sql.Tx, m Mutation) (*domain.Wallet, error) {
	if m.Amount <= 0 {
		return nil, fmt.Errorf("Apply: %w", domain.ErrInvalidAmount)
	}
	postings, err := m.Op.Postings(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	now := s.now().UTC()
	w, err := s.wallets.GetOrCreateForUpdate(ctx, tx, m.OwnerID, now)
	if err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}

	if m.Reference != "" {
		dup, err := s.ledger.HasReference(ctx, tx, m.OwnerID, m.Reference, postings[0].Kind)
		if err != nil {
			return nil, fmt.Errorf("Apply: %w", err)
		}
		if dup {
			return nil, fmt.Errorf("Apply: %s %s: %w", m.Op, m.Reference, domain.ErrDuplicateReference)
		}
	}

	next, err := w.Apply(m.Op, m.Amount)
	if err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}
	next.Version = w.Version + 1
	next.UpdatedAt = now

	var meta json.RawMessage
	if len(m.Metadata) > 0 {
		meta, err = json.Marshal(m.Metadata)
		if err != nil {
			return nil, fmt.Errorf("Apply: marshal metadata: %w", err)
		}
	}

	for _, p := range postings {
		entry := &domain.LedgerEntry{
			ID:        uuid.New(),
			OwnerID:   m.OwnerID,
			Kind:      p.Kind,
			Bucket:    p.Bucket,
			Amount:    p.Amount,
			Reference: m.Reference,
			Metadata:  meta,
			CreatedAt: now,
		}
		if err := s.ledger.Append(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("Apply: %w", err)
		}
	}

	if err := s.wallets.UpdateBalances(ctx, tx, &next); err != nil {
		return nil, fmt.Errorf("Apply: %w", err)
	}
	return &next, nil
}

// Execute runs m in its own transaction, retrying on lock contention.
func (s *Service) Execute(ctx context.Context, m Mutation) (*domain.Wallet, error) {
	log := logging.FromContext(ctx)

	var result *domain.Wallet
	err := repository.RunInTx(ctx, s.db, s.maxRetries, func(tx *sql.Tx) error {
		w, err := s.Apply(ctx, tx, m)
		if err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}

	log.Info("wallet mutated",
		"owner_id", m.OwnerID,
		"op", m.Op,
		"amount", m.Amount,
		"reference", m.Reference,
		"balance", result.Balance,
		"escrowed", result.Escrowed,
	)
	return result, nil
}

func (s *Service) Deposit(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (*domain.Wallet, error) {
	return s.Execute(ctx, Mutation{OwnerID: ownerID, Op: domain.OpDeposit, Amount: amount, Reference: reference})
}

func (s *Service) Withdraw(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (*domain.Wallet, error) {
	return s.Execute(ctx, Mutation{OwnerID: ownerID, Op: domain.OpWithdraw, Amount: amount, Reference: reference})
}

func (s *Service) HoldInEscrow(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (*domain.Wallet, error) {
	return s.Execute(ctx, Mutation{OwnerID: ownerID, Op: domain.OpHold, Amount: amount, Reference: reference})
}

func (s *Service) ReleaseEscrow(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (*domain.Wallet, error) {
	return s.Execute(ctx, Mutation{OwnerID: ownerID, Op: domain.OpRelease, Amount: amount, Reference: reference})
}

// PayoutEscrow removes amount from the owner's escrow without returning it to
// the available bucket. The recipient is credited separately.
func (s *Service) PayoutEscrow(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (*domain.Wallet, error) {
	return s.Execute(ctx, Mutation{OwnerID: ownerID, Op: domain.OpPayout, Amount: amount, Reference: reference})
}

// GetBalance reports zeros for an owner that has never transacted.
func (s *Service) GetBalance(ctx context.Context, ownerID uuid.UUID) (domain.Balance, error) {
	w, err := s.wallets.GetByOwner(ctx, s.db, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Balance{}, nil
	}
	if err != nil {
		return domain.Balance{}, fmt.Errorf("GetBalance: %w", err)
	}
	return w.Snapshot(), nil
}

func (s *Service) ListLedger(ctx context.Context, ownerID uuid.UUID, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	if filter.Since != nil && filter.Until != nil && filter.Until.Before(*filter.Since) {
		return nil, fmt.Errorf("ListLedger: until before since: %w", domain.ErrInvalidRequest)
	}
	if filter.Limit < 0 {
		return nil, fmt.Errorf("ListLedger: negative limit: %w", domain.ErrInvalidRequest)
	}
	entries, err := s.ledger.List(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("ListLedger: %w", err)
	}
	return entries, nil
}

// BalanceAsOf replays the ledger up to and including at.
func (s *Service) BalanceAsOf(ctx context.Context, ownerID uuid.UUID, at time.Time) (domain.Balance, error) {
	b, err := s.ledger.SumAsOf(ctx, ownerID, at)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("BalanceAsOf: %w", err)
	}
	return b, nil
}

type AuditReport struct {
	OwnerID    uuid.UUID      `json:"owner_id"`
	Wallet     domain.Balance `json:"wallet"`
	Ledger     domain.Balance `json:"ledger"`
	Entries    int            `json:"entries"`
	BrokenSeq  *int64         `json:"broken_seq,omitempty"`
	Consistent bool           `json:"consistent"`
}

// Audit compares the stored wallet with a replay of its ledger and verifies
// the hash chain. Both reads come from one repeatable-read snapshot.
func (s *Service) Audit(ctx context.Context, ownerID uuid.UUID) (*AuditReport, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("Audit: begin tx: %w", err)
	}
	defer tx.Rollback()

	report := &AuditReport{OwnerID: ownerID}

	w, err := s.wallets.GetByOwner(ctx, tx, ownerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("Audit: %w", err)
	default:
		report.Wallet = w.Snapshot()
	}

	entries, err := s.ledger.ListChain(ctx, tx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("Audit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Audit: commit: %w", err)
	}

	report.Entries = len(entries)
	report.Ledger = domain.SumBuckets(entries)
	if i := domain.VerifyChain(entries); i >= 0 {
		seq := entries[i].Seq
		report.BrokenSeq = &seq
	}
	report.Consistent = report.BrokenSeq == nil && report.Wallet == report.Ledger

	if !report.Consistent {
		log.Warn("wallet audit failed",
			"owner_id", ownerID,
			"wallet_balance", report.Wallet.Balance,
			"wallet_escrowed", report.Wallet.Escrowed,
			"ledger_balance", report.Ledger.Balance,
			"ledger_escrowed", report.Ledger.Escrowed,
			"broken_seq", report.BrokenSeq,
		)
	}
	return report, nil
}
