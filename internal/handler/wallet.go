package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/logging"
	"github.com/josh-kwaku/session-escrow/internal/service/wallet"
)

type walletService interface {
	GetBalance(ctx context.Context, ownerID uuid.UUID) (domain.Balance, error)
	Deposit(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (*domain.Wallet, error)
	Withdraw(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (*domain.Wallet, error)
	ListLedger(ctx context.Context, ownerID uuid.UUID, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)
	BalanceAsOf(ctx context.Context, ownerID uuid.UUID, at time.Time) (domain.Balance, error)
	Audit(ctx context.Context, ownerID uuid.UUID) (*wallet.AuditReport, error)
}

type WalletHandler struct {
	wallets walletService
}

func NewWalletHandler(wallets walletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type moneyRequest struct {
	Amount    int64  `json:"amount" validate:"gt=0"`
	Reference string `json:"reference" validate:"max=128"`
}

// userReference namespaces client-supplied references so they can never
// collide with the references settlement writes.
func (r moneyRequest) userReference() string {
	if r.Reference == "" {
		return ""
	}
	return "user:" + r.Reference
}

type balanceDTO struct {
	OwnerID  uuid.UUID `json:"owner_id"`
	Balance  int64     `json:"balance"`
	Escrowed int64     `json:"escrowed"`
	Total    int64     `json:"total"`
}

func toBalanceDTO(ownerID uuid.UUID, b domain.Balance) balanceDTO {
	return balanceDTO{
		OwnerID:  ownerID,
		Balance:  b.Balance,
		Escrowed: b.Escrowed,
		Total:    b.Total(),
	}
}

type ledgerEntryDTO struct {
	ID        uuid.UUID `json:"id"`
	Seq       int64     `json:"seq"`
	Kind      string    `json:"kind"`
	Bucket    string    `json:"bucket"`
	Amount    int64     `json:"amount"`
	Reference string    `json:"reference,omitempty"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

func toLedgerEntryDTO(e *domain.LedgerEntry) ledgerEntryDTO {
	return ledgerEntryDTO{
		ID:        e.ID,
		Seq:       e.Seq,
		Kind:      string(e.Kind),
		Bucket:    string(e.Bucket),
		Amount:    e.Amount,
		Reference: e.Reference,
		Hash:      e.Hash,
		CreatedAt: e.CreatedAt,
	}
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	b, err := h.wallets.GetBalance(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to get balance", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toBalanceDTO(userID, b))
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.wallets.Deposit)
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.wallets.Withdraw)
}

type mutateFunc func(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (*domain.Wallet, error)

func (h *WalletHandler) mutate(w http.ResponseWriter, r *http.Request, fn mutateFunc) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req moneyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	wlt, err := fn(r.Context(), userID, req.Amount, req.userReference())
	if err != nil {
		logging.FromContext(r.Context()).Warn("wallet mutation rejected", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toBalanceDTO(userID, wlt.Snapshot()))
}

func (h *WalletHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var fields []FieldError
	since, errs := timeQuery(r, "since")
	fields = append(fields, errs...)
	until, errs := timeQuery(r, "until")
	fields = append(fields, errs...)
	limit, errs := intQuery(r, "limit")
	fields = append(fields, errs...)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	entries, err := h.wallets.ListLedger(r.Context(), userID, domain.LedgerFilter{
		Since: since,
		Until: until,
		Limit: limit,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list ledger", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]ledgerEntryDTO, len(entries))
	for i := range entries {
		dtos[i] = toLedgerEntryDTO(&entries[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *WalletHandler) BalanceAsOf(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	at, fields := requiredTimeQuery(r, "at")
	if fields != nil {
		RespondValidationError(w, fields)
		return
	}

	b, err := h.wallets.BalanceAsOf(r.Context(), userID, at)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to compute historical balance", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"at":      at,
		"balance": toBalanceDTO(userID, b),
	})
}

func (h *WalletHandler) Audit(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	report, err := h.wallets.Audit(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("wallet audit failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, report)
}
