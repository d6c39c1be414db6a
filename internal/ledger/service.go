package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// Service defines operations that record wallet journal entries.
type Service interface {
	Record(ctx context.Context, input RecordEntryInput) (*models.Transaction, error)
	History(ctx context.Context, walletID string) ([]models.Transaction, error)
	HasReference(ctx context.Context, reference string, action enums.WalletAction) (bool, error)
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a journal row requires.
type RecordEntryInput struct {
	WalletID      string
	UserID        string
	Action        enums.WalletAction
	Amount        decimal.Decimal
	ShareDelta    decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Currency      enums.Currency
	Reference     string
}

// NewService wires a journal service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, input RecordEntryInput) (*models.Transaction, error) {
	if input.WalletID == "" {
		return nil, fmt.Errorf("wallet id is required")
	}
	if !input.Action.IsValid() {
		return nil, fmt.Errorf("invalid wallet action %q", input.Action)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}
	if input.BalanceAfter.IsNegative() {
		return nil, fmt.Errorf("balance after cannot be negative")
	}

	entry := &models.Transaction{
		ID:            uuid.NewString(),
		WalletID:      input.WalletID,
		UserID:        input.UserID,
		Action:        input.Action,
		Amount:        input.Amount,
		ShareDelta:    input.ShareDelta,
		BalanceBefore: input.BalanceBefore,
		BalanceAfter:  input.BalanceAfter,
		Currency:      input.Currency.Normalize(),
		Reference:     input.Reference,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) History(ctx context.Context, walletID string) ([]models.Transaction, error) {
	if walletID == "" {
		return nil, fmt.Errorf("wallet id is required")
	}
	return s.repo.ListByWallet(ctx, walletID)
}

func (s *service) HasReference(ctx context.Context, reference string, action enums.WalletAction) (bool, error) {
	if reference == "" {
		return false, fmt.Errorf("reference is required")
	}
	if !action.IsValid() {
		return false, fmt.Errorf("invalid wallet action %q", action)
	}

	entries, err := s.repo.ListByReference(ctx, reference)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Action == action {
			return true, nil
		}
	}
	return false, nil
}
