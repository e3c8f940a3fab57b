package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/session-escrow/internal/domain"
	"github.com/josh-kwaku/session-escrow/internal/service/wallet"
)

type fakeWallets struct {
	balance domain.Balance
	err     error

	lastAmount    int64
	lastReference string
	lastFilter    domain.LedgerFilter
	lastAt        time.Time
}

func (f *fakeWallets) GetBalance(_ context.Context, _ uuid.UUID) (domain.Balance, error) {
	return f.balance, f.err
}

func (f *fakeWallets) Deposit(_ context.Context, owner uuid.UUID, amount int64, ref string) (*domain.Wallet, error) {
	f.lastAmount, f.lastReference = amount, ref
	if f.err != nil {
		return nil, f.err
	}
	f.balance.Balance += amount
	return &domain.Wallet{OwnerID: owner, Balance: f.balance.Balance, Escrowed: f.balance.Escrowed}, nil
}

func (f *fakeWallets) Withdraw(_ context.Context, owner uuid.UUID, amount int64, ref string) (*domain.Wallet, error) {
	f.lastAmount, f.lastReference = amount, ref
	if f.err != nil {
		return nil, f.err
	}
	if f.balance.Balance < amount {
		return nil, domain.ErrInsufficientFunds
	}
	f.balance.Balance -= amount
	return &domain.Wallet{OwnerID: owner, Balance: f.balance.Balance, Escrowed: f.balance.Escrowed}, nil
}

func (f *fakeWallets) ListLedger(_ context.Context, owner uuid.UUID, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []domain.LedgerEntry{
		{ID: uuid.New(), Seq: 1, OwnerID: owner, Kind: domain.EntryKindDeposit, Bucket: domain.BucketAvailable, Amount: 500},
	}, nil
}

func (f *fakeWallets) BalanceAsOf(_ context.Context, _ uuid.UUID, at time.Time) (domain.Balance, error) {
	f.lastAt = at
	return f.balance, f.err
}

func (f *fakeWallets) Audit(_ context.Context, owner uuid.UUID) (*wallet.AuditReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &wallet.AuditReport{OwnerID: owner, Wallet: f.balance, Ledger: f.balance, Consistent: true}, nil
}

func walletRouter(h *WalletHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/wallet", h.Get)
	r.Post("/wallet/deposit", h.Deposit)
	r.Post("/wallet/withdraw", h.Withdraw)
	r.Get("/wallet/ledger", h.Ledger)
	r.Get("/wallet/balance-as-of", h.BalanceAsOf)
	r.Get("/wallet/audit", h.Audit)
	return r
}

func TestWalletDeposit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantRef    string
	}{
		{name: "plain deposit", body: `{"amount":500}`, wantStatus: http.StatusOK},
		{name: "client reference is namespaced", body: `{"amount":500,"reference":"topup-1"}`, wantStatus: http.StatusOK, wantRef: "user:topup-1"},
		{name: "zero amount", body: `{"amount":0}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "negative amount", body: `{"amount":-5}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "malformed", body: `amount=5`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeWallets{}
			owner := uuid.New()

			rr := httptest.NewRecorder()
			walletRouter(NewWalletHandler(fake)).ServeHTTP(rr, newRequest(http.MethodPost, "/wallet/deposit", tc.body, owner, domain.RoleStudent))

			assert.Equal(t, tc.wantStatus, rr.Code)
			var out balanceDTO
			resp := decodeResponse(t, rr, &out)
			if tc.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
				return
			}
			assert.Equal(t, tc.wantRef, fake.lastReference)
			assert.Equal(t, owner, out.OwnerID)
			assert.Equal(t, int64(500), out.Balance)
			assert.Equal(t, int64(500), out.Total)
		})
	}
}

func TestWalletWithdraw_InsufficientFunds(t *testing.T) {
	fake := &fakeWallets{balance: domain.Balance{Balance: 100, Escrowed: 400}}

	rr := httptest.NewRecorder()
	walletRouter(NewWalletHandler(fake)).ServeHTTP(rr, newRequest(http.MethodPost, "/wallet/withdraw", `{"amount":200}`, uuid.New(), domain.RoleStudent))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decodeResponse(t, rr, nil)
	assert.Equal(t, "INSUFFICIENT_FUNDS", resp.Error.Code)
}

func TestWalletGet(t *testing.T) {
	fake := &fakeWallets{balance: domain.Balance{Balance: 100, Escrowed: 400}}

	rr := httptest.NewRecorder()
	walletRouter(NewWalletHandler(fake)).ServeHTTP(rr, newRequest(http.MethodGet, "/wallet", "", uuid.New(), domain.RoleStudent))

	require.Equal(t, http.StatusOK, rr.Code)
	var out balanceDTO
	decodeResponse(t, rr, &out)
	assert.Equal(t, int64(100), out.Balance)
	assert.Equal(t, int64(400), out.Escrowed)
	assert.Equal(t, int64(500), out.Total)
}

func TestWalletLedger_QueryParsing(t *testing.T) {
	t.Run("filters passed through", func(t *testing.T) {
		fake := &fakeWallets{}
		rr := httptest.NewRecorder()
		walletRouter(NewWalletHandler(fake)).ServeHTTP(rr, newRequest(http.MethodGet,
			"/wallet/ledger?since=2030-01-01T00:00:00Z&limit=10", "", uuid.New(), domain.RoleStudent))

		require.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, fake.lastFilter.Since)
		assert.True(t, fake.lastFilter.Since.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
		assert.Nil(t, fake.lastFilter.Until)
		assert.Equal(t, 10, fake.lastFilter.Limit)

		var out []ledgerEntryDTO
		decodeResponse(t, rr, &out)
		require.Len(t, out, 1)
		assert.Equal(t, "deposit", out[0].Kind)
		assert.Equal(t, "available", out[0].Bucket)
	})

	t.Run("bad parameters", func(t *testing.T) {
		rr := httptest.NewRecorder()
		walletRouter(NewWalletHandler(&fakeWallets{})).ServeHTTP(rr, newRequest(http.MethodGet,
			"/wallet/ledger?since=last-week&limit=-1", "", uuid.New(), domain.RoleStudent))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var raw struct {
			Error struct {
				Details []FieldError `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, jsonDecode(rr, &raw))
		assert.Len(t, raw.Error.Details, 2)
	})
}

func TestWalletBalanceAsOf(t *testing.T) {
	t.Run("requires at", func(t *testing.T) {
		rr := httptest.NewRecorder()
		walletRouter(NewWalletHandler(&fakeWallets{})).ServeHTTP(rr, newRequest(http.MethodGet, "/wallet/balance-as-of", "", uuid.New(), domain.RoleStudent))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("passes timestamp", func(t *testing.T) {
		fake := &fakeWallets{balance: domain.Balance{Balance: 42}}
		rr := httptest.NewRecorder()
		walletRouter(NewWalletHandler(fake)).ServeHTTP(rr, newRequest(http.MethodGet,
			"/wallet/balance-as-of?at=2030-06-04T12:00:00Z", "", uuid.New(), domain.RoleStudent))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, fake.lastAt.Equal(time.Date(2030, 6, 4, 12, 0, 0, 0, time.UTC)))
	})
}

func TestWalletAudit(t *testing.T) {
	fake := &fakeWallets{balance: domain.Balance{Balance: 10}}
	rr := httptest.NewRecorder()
	walletRouter(NewWalletHandler(fake)).ServeHTTP(rr, newRequest(http.MethodGet, "/wallet/audit", "", uuid.New(), domain.RoleMentor))

	require.Equal(t, http.StatusOK, rr.Code)
	var out wallet.AuditReport
	decodeResponse(t, rr, &out)
	assert.True(t, out.Consistent)
	assert.Equal(t, int64(10), out.Ledger.Balance)
}
