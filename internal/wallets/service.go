// Package wallets moves money in and out of user wallets.
package wallets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/internal/ledger"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	"github.com/angelmondragon/brandpay-backend/pkg/metrics"
)

const maxSwapAttempts = 3

// Rejection messages returned in Result.Msg.
const (
	MsgCurrencyRequired     = "Currency is required"
	MsgInvalidAmount        = "Invalid amount"
	MsgInvalidAction        = "Invalid action"
	MsgWalletNotFound       = "Wallet not found"
	MsgIncompatibleCurrency = "Incompatible currency"
	MsgInsufficientFunds    = "Insufficient funds"
	MsgInvalidShareRate     = "Invalid share rate"
)

var hundred = decimal.NewFromInt(100)

// Request describes one wallet mutation.
type Request struct {
	Action    enums.WalletAction
	Amount    decimal.Decimal
	WalletID  string
	Currency  enums.Currency
	ShareRate decimal.Decimal
	UserID    string
	Reference string
}

// Result reports the outcome of a mutation. UpdatedValue is meaningful only when Status is true.
type Result struct {
	Status       bool
	UpdatedValue decimal.Decimal
	ShareValue   decimal.Decimal
	Msg          string
}

// ServiceParams configure the wallet service.
type ServiceParams struct {
	Store   docstore.Store
	Ledger  ledger.Service
	Logger  *logger.Logger
	Metrics *metrics.SettlementMetrics
}

// Service applies debits and credits with a compare-and-swap on the wallet version.
type Service struct {
	store   docstore.Store
	ledger  ledger.Service
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
}

// NewService wires the wallet service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		store:   params.Store,
		ledger:  params.Ledger,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// balance is a loaded wallet plus the swap that persists a new state for it.
type balance struct {
	walletID string
	userID   string
	value    decimal.Decimal
	share    decimal.Decimal
	currency enums.Currency
	swap     func(ctx context.Context, value, share decimal.Decimal) (bool, error)
}

// DebitAndCredit applies req to the wallet. Business rejections come back as a failed Result
// together with a typed error; the balance is never written in that case.
func (s *Service) DebitAndCredit(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		s.metrics.IncWalletOperation(string(req.Action), "rejected")
		return Result{Msg: pkgerrors.PublicMessage(err)}, err
	}

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		bal, err := s.load(ctx, req.UserID, req.WalletID)
		if err != nil {
			s.metrics.IncWalletOperation(string(req.Action), "rejected")
			return Result{Msg: pkgerrors.PublicMessage(err)}, err
		}
		if !bal.currency.Equal(req.Currency) {
			s.metrics.IncWalletOperation(string(req.Action), "rejected")
			return Result{Msg: MsgIncompatibleCurrency}, pkgerrors.New(pkgerrors.CodeIncompatibleCurrency, MsgIncompatibleCurrency)
		}

		value, share, shareDelta, rejectErr := apply(req, bal)
		if rejectErr != nil {
			s.metrics.IncWalletOperation(string(req.Action), "rejected")
			return Result{Msg: pkgerrors.PublicMessage(rejectErr)}, rejectErr
		}

		swapped, err := bal.swap(ctx, value, share)
		if err != nil {
			s.metrics.IncWalletOperation(string(req.Action), "error")
			return Result{Msg: pkgerrors.PublicMessage(err)}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet")
		}
		if !swapped {
			continue
		}

		s.journal(ctx, req, bal, value, shareDelta)
		s.metrics.IncWalletOperation(string(req.Action), "ok")
		return Result{Status: true, UpdatedValue: value, ShareValue: share, Msg: successMessage(req.Action)}, nil
	}

	s.metrics.IncWalletOperation(string(req.Action), "conflict")
	err := pkgerrors.New(pkgerrors.CodeConflict, "wallet changed concurrently, try again")
	return Result{Msg: err.Message()}, err
}

func validate(req Request) error {
	if req.Currency.IsZero() {
		return pkgerrors.New(pkgerrors.CodeInvalidInput, MsgCurrencyRequired)
	}
	if !req.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeInvalidInput, MsgInvalidAmount)
	}
	if !req.Action.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInvalidInput, MsgInvalidAction)
	}
	if req.ShareRate.IsNegative() || req.ShareRate.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeInvalidInput, MsgInvalidShareRate)
	}
	if strings.TrimSpace(req.WalletID) == "" {
		return pkgerrors.New(pkgerrors.CodeNotFound, MsgWalletNotFound)
	}
	return nil
}

// apply computes the new balance pair. A credit carves the share out of the credited amount.
func apply(req Request, bal balance) (value, share, shareDelta decimal.Decimal, err error) {
	switch req.Action {
	case enums.WalletActionCredit:
		shareDelta = req.Amount.Mul(req.ShareRate).Div(hundred).Round(2)
		value = bal.value.Add(req.Amount).Sub(shareDelta)
		share = bal.share.Add(shareDelta)
	case enums.WalletActionDebit:
		if req.Amount.GreaterThan(bal.value) {
			return decimal.Zero, decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeInsufficientFunds, MsgInsufficientFunds)
		}
		value = bal.value.Sub(req.Amount)
		share = bal.share
	}
	return value, share, shareDelta, nil
}

func (s *Service) load(ctx context.Context, userID, walletID string) (balance, error) {
	if userID != "" {
		var user models.User
		err := s.store.FetchOne(ctx, models.CollectionUsers, userID, &user)
		switch {
		case err == nil && user.Wallet.ID == walletID:
			return s.embedded(user), nil
		case err != nil && !errors.Is(err, docstore.ErrNotFound):
			return balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}
	}

	filter := docstore.Where(docstore.Eq("id", walletID))
	if userID != "" {
		filter = append(filter, docstore.Eq("user_id", userID))
	}
	var rows []models.Wallet
	if err := s.store.FetchMany(ctx, models.CollectionWallets, filter, nil, &rows); err != nil {
		return balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if len(rows) == 0 {
		return balance{}, pkgerrors.New(pkgerrors.CodeNotFound, MsgWalletNotFound)
	}
	return s.secondary(rows[0]), nil
}

func (s *Service) embedded(user models.User) balance {
	version := user.WalletVersion
	wallet := user.Wallet
	return balance{
		walletID: wallet.ID,
		userID:   user.ID,
		value:    wallet.Balance,
		share:    wallet.ShareValue,
		currency: wallet.Currency,
		swap: func(ctx context.Context, value, share decimal.Decimal) (bool, error) {
			next := wallet
			next.Balance = value
			next.ShareValue = share
			n, err := s.store.UpdateMany(ctx, models.CollectionUsers,
				docstore.Where(docstore.Eq("id", user.ID), docstore.Eq("wallet_version", version)),
				map[string]any{"wallet": next, "wallet_version": version + 1})
			return n == 1, err
		},
	}
}

func (s *Service) secondary(row models.Wallet) balance {
	return balance{
		walletID: row.ID,
		userID:   row.UserID,
		value:    row.Balance,
		share:    row.ShareValue,
		currency: row.Currency,
		swap: func(ctx context.Context, value, share decimal.Decimal) (bool, error) {
			n, err := s.store.UpdateMany(ctx, models.CollectionWallets,
				docstore.Where(docstore.Eq("id", row.ID), docstore.Eq("version", row.Version)),
				map[string]any{"value": value, "share_value": share, "version": row.Version + 1})
			return n == 1, err
		},
	}
}

// journal records the mutation. The balance has already moved, so failures are logged only.
func (s *Service) journal(ctx context.Context, req Request, bal balance, value, shareDelta decimal.Decimal) {
	_, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
		WalletID:      bal.walletID,
		UserID:        bal.userID,
		Action:        req.Action,
		Amount:        req.Amount,
		ShareDelta:    shareDelta,
		BalanceBefore: bal.value,
		BalanceAfter:  value,
		Currency:      bal.currency,
		Reference:     req.Reference,
	})
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"wallet_id": bal.walletID,
			"action":    req.Action,
			"reference": req.Reference,
		})
		s.logg.Error(logCtx, "wallet journal write failed", err)
	}
}

// EnsureWallet returns the secondary wallet for (user, brand, currency, identifier), creating it empty.
func (s *Service) EnsureWallet(ctx context.Context, userID, brandID string, currency enums.Currency, identifier string) (*models.Wallet, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "user id is required")
	}
	if currency.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, MsgCurrencyRequired)
	}
	currency = currency.Normalize()

	id := walletID(userID, brandID, currency, identifier)
	var existing models.Wallet
	err := s.store.FetchOne(ctx, models.CollectionWallets, id, &existing)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	wallet := &models.Wallet{
		ID:         id,
		UserID:     userID,
		BrandID:    brandID,
		Identifier: identifier,
		Currency:   currency,
		Balance:    decimal.Zero,
		ShareValue: decimal.Zero,
	}
	if err := s.store.Upsert(ctx, models.CollectionWallets, wallet, true); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return wallet, nil
}

var walletNamespace = uuid.MustParse("6f1c3c1e-8d0b-4e57-9a43-1f0b7b3f2a10")

// walletID derives a stable id so concurrent creators converge on one row.
func walletID(userID, brandID string, currency enums.Currency, identifier string) string {
	key := strings.Join([]string{userID, brandID, string(currency), identifier}, "|")
	return uuid.NewSHA1(walletNamespace, []byte(key)).String()
}

func successMessage(action enums.WalletAction) string {
	if action == enums.WalletActionDebit {
		return "Wallet debited"
	}
	return "Wallet credited"
}
