// Package payments records payments and moves wallet balances for them.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/internal/wallets"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/flutterwave"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	"github.com/angelmondragon/brandpay-backend/pkg/paystack"
)

const (
	msgCurrencyRequired = "Currency is required"
	msgBankRequired     = "Bank details are required for payouts"
	msgFreeOrder        = "No charge required"
	msgAwaitingGateway  = "Awaiting gateway confirmation"
	msgQueuedPayout     = "Payout queued"
	msgRecorded         = "Payment recorded"
)

type walletMover interface {
	DebitAndCredit(ctx context.Context, req wallets.Request) (wallets.Result, error)
}

type paystackVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

type flutterwaveVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*flutterwave.Transaction, error)
}

// Input describes a payment to record. When ID names an existing payment it is updated in place.
type Input struct {
	ID              string
	ReferenceID     string
	UserID          string
	BrandID         string
	WalletID        string
	Amount          decimal.Decimal
	Currency        enums.Currency
	Gateway         enums.Gateway
	TrnxType        enums.TrnxType
	Type            enums.PaymentType
	Pay             bool
	ShareRate       decimal.Decimal
	Bank            models.BankDetails
	Description     string
	FulfillmentDate *time.Time
	Others          models.JSONMap
	ReturnOnFail    bool
}

// Result reports what Process did. Payment is nil only when nothing was persisted.
type Result struct {
	Debited  bool
	Credited bool
	Payout   bool
	Inserted bool
	Msg      string
	Payment  *models.Payment
}

// ServiceParams configure the payment processor.
type ServiceParams struct {
	Store         docstore.Store
	Wallets       walletMover
	Paystack      paystackVerifier
	Flutterwave   flutterwaveVerifier
	PayoutGateway enums.Gateway
	Logger        *logger.Logger
	Clock         docstore.Clock
}

// Service is the payment processor.
type Service struct {
	store         docstore.Store
	wallets       walletMover
	paystack      paystackVerifier
	flutterwave   flutterwaveVerifier
	payoutGateway enums.Gateway
	logg          *logger.Logger
	now           docstore.Clock
}

// NewService wires the payment processor. Gateway verifiers are optional.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	gateway := params.PayoutGateway
	if gateway == "" {
		gateway = enums.GatewayPaystack
	}
	clock := params.Clock
	if clock == nil {
		clock = docstore.UTCNow
	}
	return &Service{
		store:         params.Store,
		wallets:       params.Wallets,
		paystack:      params.Paystack,
		flutterwave:   params.Flutterwave,
		payoutGateway: gateway,
		logg:          params.Logger,
		now:           clock,
	}, nil
}

// Process records a payment and, for wallet payments with Pay set, moves the wallet balance.
// The payment document is persisted even when the wallet operation fails, unless ReturnOnFail is set.
func (s *Service) Process(ctx context.Context, in Input) (Result, error) {
	if in.Currency.IsZero() {
		return Result{Msg: msgCurrencyRequired}, pkgerrors.New(pkgerrors.CodeMissingFields, msgCurrencyRequired)
	}
	if in.Amount.IsNegative() {
		return Result{Msg: wallets.MsgInvalidAmount}, pkgerrors.New(pkgerrors.CodeInvalidInput, wallets.MsgInvalidAmount)
	}
	if !in.Type.IsValid() {
		return Result{Msg: "Invalid payment type"}, pkgerrors.New(pkgerrors.CodeInvalidInput, "Invalid payment type")
	}

	payment := s.newPayment(in)
	if in.TrnxType.MovesToBank() {
		if !in.Bank.Complete() {
			return Result{Msg: msgBankRequired}, pkgerrors.New(pkgerrors.CodeMissingFields, msgBankRequired)
		}
		payment.Charges = TransferCharges(s.payoutGateway, payment.Currency, in.Amount)
	}

	var (
		res       Result
		walletErr error
	)
	switch in.Type {
	case enums.PaymentTypeDebit:
		res, walletErr = s.debit(ctx, in, payment)
	case enums.PaymentTypeCredit:
		res, walletErr = s.credit(ctx, in, payment)
	case enums.PaymentTypePayout:
		payment.Status = enums.PaymentStatusPaid
		if payment.FulfillmentDate == nil {
			now := s.now()
			payment.FulfillmentDate = &now
		}
		res = Result{Payout: true, Msg: msgQueuedPayout}
	default:
		res = Result{Msg: msgRecorded}
	}

	if walletErr != nil && in.ReturnOnFail {
		return res, walletErr
	}

	if err := s.store.Upsert(ctx, models.CollectionPayments, payment, true); err != nil {
		logCtx := s.logg.WithReference(ctx, payment.ReferenceID)
		s.logg.Error(logCtx, "payment save failed", err)
		res.Msg = pkgerrors.MetadataFor(pkgerrors.CodePaymentSave).PublicMessage
		return res, pkgerrors.Wrap(pkgerrors.CodePaymentSave, err, "save payment")
	}
	res.Inserted = true
	res.Payment = payment
	return res, walletErr
}

func (s *Service) newPayment(in Input) *models.Payment {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	gateway := in.Gateway
	if gateway == "" {
		gateway = enums.GatewayWallet
	}
	currency := in.Currency.Normalize()
	return &models.Payment{
		ID:              id,
		ReferenceID:     in.ReferenceID,
		UserID:          in.UserID,
		BrandID:         in.BrandID,
		WalletID:        in.WalletID,
		Amount:          in.Amount,
		Charges:         decimal.Zero,
		Currency:        currency,
		CurrencySymbol:  currency.Symbol(),
		Gateway:         gateway,
		TrnxType:        in.TrnxType,
		Type:            in.Type,
		Status:          enums.PaymentStatusPending,
		ShareRate:       in.ShareRate,
		Description:     in.Description,
		BankPaymentInfo: in.Bank,
		FulfillmentDate: in.FulfillmentDate,
		Others:          in.Others,
	}
}

func (s *Service) debit(ctx context.Context, in Input, payment *models.Payment) (Result, error) {
	if payment.Total().IsZero() {
		payment.Status = enums.PaymentStatusPaid
		payment.Gateway = enums.GatewayWallet
		return Result{Debited: true, Msg: msgFreeOrder}, nil
	}
	if payment.Gateway.IsExternal() || !in.Pay {
		return Result{Msg: msgAwaitingGateway}, nil
	}

	out, err := s.wallets.DebitAndCredit(ctx, wallets.Request{
		Action:    enums.WalletActionDebit,
		Amount:    payment.Total(),
		WalletID:  in.WalletID,
		Currency:  payment.Currency,
		UserID:    in.UserID,
		Reference: payment.ReferenceID,
	})
	if err != nil || !out.Status {
		payment.Status = enums.PaymentStatusFailed
		payment.FailureReason = out.Msg
		return Result{Msg: out.Msg}, walletFailure(err, out)
	}
	payment.Status = enums.PaymentStatusPaid
	payment.Gateway = enums.GatewayWallet
	return Result{Debited: true, Msg: out.Msg}, nil
}

func (s *Service) credit(ctx context.Context, in Input, payment *models.Payment) (Result, error) {
	if payment.Amount.IsZero() {
		payment.Status = enums.PaymentStatusCompleted
		payment.Gateway = enums.GatewayWallet
		return Result{Credited: true, Msg: msgFreeOrder}, nil
	}
	if !in.Pay {
		return Result{Msg: msgRecorded}, nil
	}

	out, err := s.wallets.DebitAndCredit(ctx, wallets.Request{
		Action:    enums.WalletActionCredit,
		Amount:    payment.Amount,
		WalletID:  in.WalletID,
		Currency:  payment.Currency,
		ShareRate: in.ShareRate,
		UserID:    in.UserID,
		Reference: payment.ReferenceID,
	})
	if err != nil || !out.Status {
		payment.Status = enums.PaymentStatusFailed
		payment.FailureReason = out.Msg
		return Result{Msg: out.Msg}, walletFailure(err, out)
	}
	payment.Status = enums.PaymentStatusCompleted
	payment.Gateway = enums.GatewayWallet
	return Result{Credited: true, Msg: out.Msg}, nil
}

func walletFailure(err error, out wallets.Result) error {
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeUnexpected, out.Msg)
}

// WithdrawInput is a user-initiated bank withdrawal from their wallet.
type WithdrawInput struct {
	UserID    string
	BrandID   string
	WalletID  string
	Amount    decimal.Decimal
	Currency  enums.Currency
	Bank      models.BankDetails
	Reference string
}

// Withdraw debits amount plus transfer charges and leaves the payment paid for the payout batch.
func (s *Service) Withdraw(ctx context.Context, in WithdrawInput) (Result, error) {
	if !in.Amount.IsPositive() {
		return Result{Msg: wallets.MsgInvalidAmount}, pkgerrors.New(pkgerrors.CodeInvalidInput, wallets.MsgInvalidAmount)
	}
	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		reference = uuid.NewString()
	}
	now := s.now()
	return s.Process(ctx, Input{
		ReferenceID:     reference,
		UserID:          in.UserID,
		BrandID:         in.BrandID,
		WalletID:        in.WalletID,
		Amount:          in.Amount,
		Currency:        in.Currency,
		TrnxType:        enums.TrnxTypeWithdrawal,
		Type:            enums.PaymentTypeDebit,
		Pay:             true,
		Bank:            in.Bank,
		Description:     "Wallet withdrawal",
		FulfillmentDate: &now,
		ReturnOnFail:    true,
	})
}

// Get loads one payment by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.store.FetchOne(ctx, models.CollectionPayments, id, &payment); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return &payment, nil
}

// ByReference lists the payments recorded under a checkout or transfer reference.
func (s *Service) ByReference(ctx context.Context, reference string) ([]models.Payment, error) {
	var out []models.Payment
	err := s.store.FetchMany(ctx, models.CollectionPayments,
		docstore.Where(docstore.Eq("reference_id", reference)),
		[]docstore.Sort{{Field: "created_at"}}, &out)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	return out, nil
}
