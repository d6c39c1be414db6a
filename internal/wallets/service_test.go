package wallets

import (
	"context"
	"io"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/brandpay-backend/internal/ledger"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore/docstoretest"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

type fixture struct {
	svc    *Service
	store  docstore.Store
	ledger ledger.Service
}

func newFixture(t *testing.T, wrap func(docstore.Store) docstore.Store) fixture {
	t.Helper()
	var store docstore.Store = docstoretest.NewSQLStore(t)
	if wrap != nil {
		store = wrap(store)
	}
	journal, err := ledger.NewService(ledger.NewRepository(store))
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Store:  store,
		Ledger: journal,
		Logger: logger.New(logger.Options{ServiceName: "wallets-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return fixture{svc: svc, store: store, ledger: journal}
}

func seedUser(t *testing.T, store docstore.Store, balance string, currency enums.Currency) *models.User {
	t.Helper()
	user := &models.User{
		ID:              "buyer-1",
		DefaultCurrency: currency,
		Wallet: models.UserWallet{
			ID:         "wallet-1",
			Balance:    decimal.RequireFromString(balance),
			ShareValue: decimal.Zero,
			Currency:   currency,
		},
	}
	require.NoError(t, store.Upsert(context.Background(), models.CollectionUsers, user, true))
	return user
}

func loadWallet(t *testing.T, store docstore.Store) models.UserWallet {
	t.Helper()
	var user models.User
	require.NoError(t, store.FetchOne(context.Background(), models.CollectionUsers, "buyer-1", &user))
	return user.Wallet
}

func debit(amount string) Request {
	return Request{
		Action:    enums.WalletActionDebit,
		Amount:    decimal.RequireFromString(amount),
		WalletID:  "wallet-1",
		Currency:  enums.CurrencyNGN,
		UserID:    "buyer-1",
		Reference: "ref-1",
	}
}

func TestDebitReducesBalanceAndJournals(t *testing.T) {
	f := newFixture(t, nil)
	seedUser(t, f.store, "5000", enums.CurrencyNGN)
	ctx := context.Background()

	res, err := f.svc.DebitAndCredit(ctx, debit("1000"))
	require.NoError(t, err)
	assert.True(t, res.Status)
	assert.Equal(t, "4000", res.UpdatedValue.String())

	assert.True(t, loadWallet(t, f.store).Balance.Equal(decimal.NewFromInt(4000)))

	history, err := f.ledger.History(ctx, "wallet-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.WalletActionDebit, history[0].Action)
	assert.True(t, history[0].BalanceBefore.Equal(decimal.NewFromInt(5000)))
	assert.True(t, history[0].BalanceAfter.Equal(decimal.NewFromInt(4000)))
}

func TestDebitInsufficientFundsLeavesBalance(t *testing.T) {
	f := newFixture(t, nil)
	seedUser(t, f.store, "500", enums.CurrencyNGN)

	res, err := f.svc.DebitAndCredit(context.Background(), debit("1000"))
	require.Error(t, err)
	assert.False(t, res.Status)
	assert.Equal(t, MsgInsufficientFunds, res.Msg)
	assert.True(t, res.UpdatedValue.IsZero())
	assert.Equal(t, pkgerrors.CodeInsufficientFunds, pkgerrors.CodeOf(err))
	assert.True(t, loadWallet(t, f.store).Balance.Equal(decimal.NewFromInt(500)))
}

func TestCurrencyMismatchRejected(t *testing.T) {
	f := newFixture(t, nil)
	seedUser(t, f.store, "5000", enums.CurrencyNGN)

	req := debit("10")
	req.Currency = enums.CurrencyUSD
	res, err := f.svc.DebitAndCredit(context.Background(), req)
	require.Error(t, err)
	assert.False(t, res.Status)
	assert.Equal(t, MsgIncompatibleCurrency, res.Msg)

	req.Currency = "ngn"
	res, err = f.svc.DebitAndCredit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Status)
}

func TestCreditCarvesShareOutOfAmount(t *testing.T) {
	f := newFixture(t, nil)
	seedUser(t, f.store, "100", enums.CurrencyNGN)

	req := debit("1000")
	req.Action = enums.WalletActionCredit
	req.ShareRate = decimal.NewFromInt(10)
	res, err := f.svc.DebitAndCredit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "1000", res.UpdatedValue.String())
	assert.Equal(t, "100", res.ShareValue.String())

	wallet := loadWallet(t, f.store)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, wallet.ShareValue.Equal(decimal.NewFromInt(100)))
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, nil)
	seedUser(t, f.store, "5000", enums.CurrencyNGN)

	cases := []struct {
		name   string
		mutate func(*Request)
		msg    string
	}{
		{"missing currency", func(r *Request) { r.Currency = "" }, MsgCurrencyRequired},
		{"zero amount", func(r *Request) { r.Amount = decimal.Zero }, MsgInvalidAmount},
		{"negative amount", func(r *Request) { r.Amount = decimal.NewFromInt(-5) }, MsgInvalidAmount},
		{"bad action", func(r *Request) { r.Action = "transfer" }, MsgInvalidAction},
		{"unknown wallet", func(r *Request) { r.WalletID = "nope" }, MsgWalletNotFound},
		{"share rate above 100", func(r *Request) { r.ShareRate = decimal.NewFromInt(101) }, MsgInvalidShareRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := debit("10")
			tc.mutate(&req)
			res, err := f.svc.DebitAndCredit(context.Background(), req)
			require.Error(t, err)
			assert.False(t, res.Status)
			assert.Equal(t, tc.msg, res.Msg)
		})
	}
	assert.True(t, loadWallet(t, f.store).Balance.Equal(decimal.NewFromInt(5000)))
}

func TestBalanceNeverNegative(t *testing.T) {
	f := newFixture(t, nil)
	seedUser(t, f.store, "250", enums.CurrencyNGN)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	expected := decimal.NewFromInt(250)
	for i := 0; i < 60; i++ {
		amount := decimal.NewFromInt(int64(rng.Intn(200) + 1))
		req := debit(amount.String())
		if rng.Intn(3) == 0 {
			req.Action = enums.WalletActionCredit
		}
		res, err := f.svc.DebitAndCredit(ctx, req)
		switch {
		case req.Action == enums.WalletActionCredit:
			require.NoError(t, err)
			expected = expected.Add(amount)
		case amount.GreaterThan(expected):
			require.Error(t, err)
			assert.False(t, res.Status)
		default:
			require.NoError(t, err)
			expected = expected.Sub(amount)
		}
		current := loadWallet(t, f.store).Balance
		require.False(t, current.IsNegative(), "balance went negative at step %d", i)
		require.True(t, current.Equal(expected), "step %d: want %s got %s", i, expected, current)
	}
}

// racingStore lets a competing writer bump the wallet version before the first swap lands.
type racingStore struct {
	docstore.Store
	raced bool
}

func (r *racingStore) UpdateMany(ctx context.Context, collection string, filter docstore.Filter, fields map[string]any) (int64, error) {
	if collection == models.CollectionUsers && !r.raced {
		r.raced = true
		var user models.User
		if err := r.Store.FetchOne(ctx, collection, "buyer-1", &user); err != nil {
			return 0, err
		}
		user.Wallet.Balance = user.Wallet.Balance.Sub(decimal.NewFromInt(100))
		if _, err := r.Store.UpdateMany(ctx, collection, docstore.Where(docstore.Eq("id", "buyer-1")),
			map[string]any{"wallet": user.Wallet, "wallet_version": user.WalletVersion + 1}); err != nil {
			return 0, err
		}
	}
	return r.Store.UpdateMany(ctx, collection, filter, fields)
}

func TestSwapRetriesOnConcurrentWrite(t *testing.T) {
	var racer *racingStore
	f := newFixture(t, func(s docstore.Store) docstore.Store {
		racer = &racingStore{Store: s}
		return racer
	})
	seedUser(t, f.store, "5000", enums.CurrencyNGN)

	res, err := f.svc.DebitAndCredit(context.Background(), debit("1000"))
	require.NoError(t, err)
	assert.True(t, racer.raced)
	assert.Equal(t, "3900", res.UpdatedValue.String())
	assert.True(t, loadWallet(t, f.store).Balance.Equal(decimal.NewFromInt(3900)))
}

func TestEnsureWalletIsIdempotentAndUsable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.EnsureWallet(ctx, "owner-1", "brand-1", "usd", "commission")
	require.NoError(t, err)
	second, err := f.svc.EnsureWallet(ctx, "owner-1", "brand-1", enums.CurrencyUSD, "commission")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, enums.CurrencyUSD, second.Currency)

	other, err := f.svc.EnsureWallet(ctx, "owner-1", "brand-1", enums.CurrencyNGN, "commission")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	res, err := f.svc.DebitAndCredit(ctx, Request{
		Action:   enums.WalletActionCredit,
		Amount:   decimal.NewFromInt(20),
		WalletID: first.ID,
		Currency: enums.CurrencyUSD,
		UserID:   "owner-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "20", res.UpdatedValue.String())

	again, err := f.svc.EnsureWallet(ctx, "owner-1", "brand-1", enums.CurrencyUSD, "commission")
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(decimal.NewFromInt(20)), "ensure must not reset an existing wallet")
}
