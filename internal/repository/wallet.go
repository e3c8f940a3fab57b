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

const walletColumns = `owner_id, balance, escrowed, version, created_at, updated_at`

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByOwner(ctx context.Context, q Querier, ownerID uuid.UUID) (*domain.Wallet, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOwner: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByOwner: %w", err)
	}
	return w, nil
}

// GetOrCreateForUpdate creates the owner's wallet on first use and returns it
// row-locked for the rest of tx.
func (r *WalletRepository) GetOrCreateForUpdate(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, now time.Time) (*domain.Wallet, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (owner_id, balance, escrowed, version, created_at, updated_at)
		VALUES ($1, 0, 0, 0, $2, $2)
		ON CONFLICT (owner_id) DO NOTHING`,
		ownerID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreateForUpdate: insert: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 FOR UPDATE`, ownerID,
	)
	w, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreateForUpdate: %w", err)
	}
	return w, nil
}

// UpdateBalances writes w, expecting the stored version to be w.Version-1.
func (r *WalletRepository) UpdateBalances(ctx context.Context, tx *sql.Tx, w *domain.Wallet) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, escrowed = $2, version = $3, updated_at = $4
		WHERE owner_id = $5 AND version = $6`,
		w.Balance, w.Escrowed, w.Version, w.UpdatedAt, w.OwnerID, w.Version-1,
	)
	if err != nil {
		if code, _ := pqCode(err); code == codeCheckViolation {
			return fmt.Errorf("UpdateBalances: %w", domain.ErrInsufficientFunds)
		}
		return fmt.Errorf("UpdateBalances: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalances: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalances: %w", domain.ErrVersionConflict)
	}
	return nil
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Scan(&w.OwnerID, &w.Balance, &w.Escrowed, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
