package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/api/middleware"
	"github.com/angelmondragon/brandpay-backend/api/responses"
	"github.com/angelmondragon/brandpay-backend/api/validators"
	"github.com/angelmondragon/brandpay-backend/internal/payments"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

// WithdrawalService debits a wallet and queues the bank transfer.
type WithdrawalService interface {
	Withdraw(ctx context.Context, in payments.WithdrawInput) (payments.Result, error)
}

// Trigger fires a background sweep without waiting for it.
type Trigger interface {
	Fire(ctx context.Context, target string)
}

type withdrawalRequest struct {
	WalletID  string          `json:"walletId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" validate:"required"`
	Reference string          `json:"reference"`
	Bank      struct {
		AccountNumber string `json:"accountNumber" validate:"required"`
		AccountName   string `json:"accountName" validate:"required"`
		BankCode      string `json:"bankCode" validate:"required"`
		BankName      string `json:"bankName"`
	} `json:"bank"`
}

// Withdraw moves funds from the caller's wallet to their bank account. The wallet is
// debited immediately and the transfer is initiated by the next settlement sweep.
func Withdraw(svc WithdrawalService, trigger Trigger, settlementTarget string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var req withdrawalRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !req.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInvalidInput, "amount must be positive"))
			return
		}

		result, err := svc.Withdraw(r.Context(), payments.WithdrawInput{
			UserID:    userID,
			BrandID:   middleware.BrandIDFromContext(r.Context()),
			WalletID:  strings.TrimSpace(req.WalletID),
			Amount:    req.Amount,
			Currency:  enums.Currency(req.Currency).Normalize(),
			Reference: strings.TrimSpace(req.Reference),
			Bank: models.BankDetails{
				AccountNumber: strings.TrimSpace(req.Bank.AccountNumber),
				AccountName:   strings.TrimSpace(req.Bank.AccountName),
				BankCode:      strings.TrimSpace(req.Bank.BankCode),
				BankName:      strings.TrimSpace(req.Bank.BankName),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if trigger != nil {
			trigger.Fire(r.Context(), settlementTarget)
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result.Payment)
	}
}
