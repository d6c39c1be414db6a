// Package payouts moves queued payouts and withdrawals to bank accounts and reconciles
// their gateway status.
package payouts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	"github.com/angelmondragon/brandpay-backend/pkg/flutterwave"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	"github.com/angelmondragon/brandpay-backend/pkg/metrics"
	"github.com/angelmondragon/brandpay-backend/pkg/paystack"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

const defaultBatchSize = 10

type transferGateway interface {
	CreateRecipient(ctx context.Context, req paystack.CreateRecipientRequest) (*paystack.Recipient, error)
	InitiateTransfer(ctx context.Context, req paystack.InitiateTransferRequest) (*paystack.Transfer, error)
	VerifyTransfer(ctx context.Context, reference string) (*paystack.Transfer, error)
}

type transferLookup interface {
	GetTransfer(ctx context.Context, id string) (*flutterwave.Transfer, error)
}

// ServiceParams wire the payout batch.
type ServiceParams struct {
	Store       docstore.Store
	Paystack    transferGateway
	Flutterwave transferLookup
	Logger      *logger.Logger
	Metrics     *metrics.SettlementMetrics
	Clock       docstore.Clock
	BatchSize   int
}

// Service runs the payout and withdrawal sweeps.
type Service struct {
	store       docstore.Store
	paystack    transferGateway
	flutterwave transferLookup
	logg        *logger.Logger
	metrics     *metrics.SettlementMetrics
	now         docstore.Clock
	batchSize   int
}

// Report summarizes one sweep.
type Report struct {
	Attempted int `json:"attempted"`
	Changed   int `json:"changed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func (r *Report) add(status enums.PaymentStatus, changed bool) {
	switch {
	case !changed:
		r.Skipped++
		return
	case status == enums.PaymentStatusCompleted:
		r.Completed++
	case status == enums.PaymentStatusFailed || status == enums.PaymentStatusReversed:
		r.Failed++
	}
	r.Changed++
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if params.Paystack == nil {
		return nil, fmt.Errorf("paystack client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &Service{
		store:       params.Store,
		paystack:    params.Paystack,
		flutterwave: params.Flutterwave,
		logg:        params.Logger,
		metrics:     params.Metrics,
		now:         params.Clock,
		batchSize:   params.BatchSize,
	}
	if svc.now == nil {
		svc.now = docstore.UTCNow
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultBatchSize
	}
	return svc, nil
}

var bankTrnxTypes = []string{string(enums.TrnxTypeWithdrawal), string(enums.TrnxTypePayout)}

// SettlePayoutsAndWithdrawals initiates a transfer for every paid, unfulfilled payout or
// withdrawal that is due. reference narrows the sweep to one reference.
func (s *Service) SettlePayoutsAndWithdrawals(ctx context.Context, reference string) (Report, error) {
	conds := []docstore.Condition{
		docstore.Eq("status", string(enums.PaymentStatusPaid)),
		docstore.In("trnx_type", bankTrnxTypes),
		docstore.Eq("fulfilled", false),
		docstore.Ne("processing", true),
		docstore.Lte("fulfillment_date", s.now()),
	}
	if reference = strings.TrimSpace(reference); reference != "" {
		conds = append(conds, docstore.Eq("reference_id", reference))
	}
	var due []models.Payment
	if err := s.store.FetchMany(ctx, models.CollectionPayments, docstore.Where(conds...),
		[]docstore.Sort{{Field: "created_at"}}, &due); err != nil {
		return Report{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load due payouts")
	}
	return s.sweep(ctx, due, s.initiate)
}

// VerifyPayoutsAndWithdrawals re-queries the gateway for every transfer still in flight
// and records the final status. It never initiates a transfer.
func (s *Service) VerifyPayoutsAndWithdrawals(ctx context.Context, reference string) (Report, error) {
	conds := []docstore.Condition{
		docstore.In("status", []string{string(enums.PaymentStatusProcessing), string(enums.PaymentStatusProcessed)}),
		docstore.In("trnx_type", bankTrnxTypes),
	}
	if reference = strings.TrimSpace(reference); reference != "" {
		conds = append(conds, docstore.Eq("reference_id", reference))
	}
	var inflight []models.Payment
	if err := s.store.FetchMany(ctx, models.CollectionPayments, docstore.Where(conds...),
		[]docstore.Sort{{Field: "created_at"}}, &inflight); err != nil {
		return Report{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load in-flight payouts")
	}
	return s.sweep(ctx, inflight, s.verify)
}

type outcome struct {
	status  enums.PaymentStatus
	changed bool
	err     error
}

// sweep runs fn over payments in fixed-size batches. Items in a batch run concurrently and
// one failing item never stops its siblings.
func (s *Service) sweep(ctx context.Context, list []models.Payment, fn func(context.Context, *models.Payment) (enums.PaymentStatus, bool, error)) (Report, error) {
	var (
		report Report
		errs   error
	)
	for start := 0; start < len(list); start += s.batchSize {
		end := min(start+s.batchSize, len(list))
		batch := list[start:end]
		results := make([]outcome, len(batch))

		var g errgroup.Group
		for i := range batch {
			g.Go(func() (err error) {
				payment := &batch[i]
				pctx := s.logg.WithFields(ctx, map[string]any{
					"payment_id": payment.ID,
					"reference":  payment.ReferenceID,
				})
				defer func() {
					if r := recover(); r != nil {
						results[i] = outcome{err: pkgerrors.New(pkgerrors.CodeUnexpected, fmt.Sprintf("payout panic: %v", r))}
					}
				}()
				status, changed, err := fn(pctx, payment)
				results[i] = outcome{status: status, changed: changed, err: err}
				if err != nil {
					s.logg.Error(pctx, "payout step failed", err)
				}
				return nil
			})
		}
		_ = g.Wait()

		for i, res := range results {
			report.Attempted++
			if res.err != nil {
				errs = multierr.Append(errs, fmt.Errorf("payment %s: %w", batch[i].ID, res.err))
				continue
			}
			report.add(res.status, res.changed)
			if res.changed {
				s.metrics.IncPayout(string(res.status))
			}
		}
	}
	return report, errs
}

// initiate sends one payout to the bank. A transfer is never re-sent: once the gateway has
// been asked, the payment leaves the paid state and only verification moves it on.
func (s *Service) initiate(ctx context.Context, payment *models.Payment) (enums.PaymentStatus, bool, error) {
	claimed, err := s.store.Lock(ctx, models.CollectionPayments, payment.ID)
	if err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payout")
	}
	if !claimed {
		return payment.Status, false, nil
	}
	defer func() {
		if err := s.store.Unlock(ctx, models.CollectionPayments, payment.ID); err != nil {
			s.logg.Error(ctx, "release payout claim", err)
		}
	}()

	var current models.Payment
	if err := s.store.FetchOne(ctx, models.CollectionPayments, payment.ID, &current); err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout")
	}
	if current.Status != enums.PaymentStatusPaid || current.Fulfilled || current.TransferCode != "" {
		return current.Status, false, nil
	}
	if !current.Amount.IsPositive() {
		return current.Status, false, pkgerrors.New(pkgerrors.CodeInvalidInput, "payout amount must be positive")
	}
	bank := current.BankPaymentInfo
	if !bank.Complete() {
		return current.Status, false, pkgerrors.New(pkgerrors.CodeMissingFields, "payout bank details are incomplete")
	}

	if bank.RecipientCode == "" {
		recipient, err := s.paystack.CreateRecipient(ctx, paystack.CreateRecipientRequest{
			Name:          bank.AccountName,
			AccountNumber: bank.AccountNumber,
			BankCode:      bank.BankCode,
			Currency:      current.Currency.String(),
		})
		if err != nil {
			return current.Status, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transfer recipient")
		}
		bank.RecipientCode = recipient.RecipientCode
	}

	fields := map[string]any{
		"gateway":               string(enums.GatewayPaystack),
		"bank_payment_info":     bank,
		"transfer_reference_id": current.ID,
	}
	transfer, terr := s.paystack.InitiateTransfer(ctx, paystack.InitiateTransferRequest{
		Amount:    current.Amount,
		Recipient: bank.RecipientCode,
		Reference: current.ID,
		Reason:    current.Description,
		Currency:  current.Currency.String(),
	})
	status := enums.PaymentStatusProcessing
	if terr != nil {
		// The transfer may have reached the gateway; verification settles it by reference.
		s.logg.Warn(ctx, "transfer initiation failed, awaiting verification")
		fields["failure_reason"] = pkgerrors.PublicMessage(terr)
	} else {
		if mapped, ok := enums.PaymentStatusFromGateway(transfer.Status); ok {
			status = mapped
		}
		fields["transfer_id"] = strconv.FormatInt(transfer.ID, 10)
		fields["transfer_code"] = transfer.TransferCode
		if transfer.Reference != "" {
			fields["transfer_reference_id"] = transfer.Reference
		}
		if status == enums.PaymentStatusFailed || status == enums.PaymentStatusReversed {
			fields["failure_reason"] = transfer.Reason
		}
	}
	fields["status"] = string(status)
	if status == enums.PaymentStatusCompleted {
		fields["fulfilled"] = true
	}

	changed, err := s.persist(ctx, current.ID, enums.PaymentStatusPaid, fields)
	if err != nil {
		return current.Status, false, err
	}
	if changed {
		s.logg.Info(s.logg.WithField(ctx, "status", status.String()), "payout initiated")
	}
	return status, changed, terr
}

// verify reconciles one in-flight transfer with its gateway.
func (s *Service) verify(ctx context.Context, payment *models.Payment) (enums.PaymentStatus, bool, error) {
	claimed, err := s.store.Lock(ctx, models.CollectionPayments, payment.ID)
	if err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payout")
	}
	if !claimed {
		return payment.Status, false, nil
	}
	defer func() {
		if err := s.store.Unlock(ctx, models.CollectionPayments, payment.ID); err != nil {
			s.logg.Error(ctx, "release payout claim", err)
		}
	}()

	gatewayStatus, reason, err := s.transferStatus(ctx, payment)
	if err != nil {
		return payment.Status, false, err
	}
	status, ok := enums.PaymentStatusFromGateway(gatewayStatus)
	if !ok || status == payment.Status {
		return payment.Status, false, nil
	}

	fields := map[string]any{"status": string(status)}
	switch status {
	case enums.PaymentStatusCompleted:
		fields["fulfilled"] = true
		fields["failure_reason"] = ""
	default:
		fields["failure_reason"] = reason
		s.logg.Warn(s.logg.WithField(ctx, "status", status.String()), "payout did not complete")
	}
	changed, err := s.persist(ctx, payment.ID, payment.Status, fields)
	if err != nil {
		return payment.Status, false, err
	}
	return status, changed, nil
}

func (s *Service) transferStatus(ctx context.Context, payment *models.Payment) (string, string, error) {
	switch payment.Gateway {
	case enums.GatewayFlutterwave:
		if s.flutterwave == nil {
			return "", "", pkgerrors.New(pkgerrors.CodeDependency, "flutterwave not configured")
		}
		if payment.TransferID == "" {
			return "", "", pkgerrors.New(pkgerrors.CodeMissingFields, "flutterwave transfer id missing")
		}
		t, err := s.flutterwave.GetTransfer(ctx, payment.TransferID)
		if err != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch flutterwave transfer")
		}
		return t.Status, t.Message, nil
	default:
		reference := payment.TransferReferenceID
		if reference == "" {
			reference = payment.ID
		}
		t, err := s.paystack.VerifyTransfer(ctx, reference)
		if err != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify paystack transfer")
		}
		return t.Status, t.Reason, nil
	}
}

// persist writes fields only while the payment is still in the from status.
func (s *Service) persist(ctx context.Context, id string, from enums.PaymentStatus, fields map[string]any) (bool, error) {
	n, err := s.store.UpdateMany(ctx, models.CollectionPayments,
		docstore.Where(docstore.Eq("id", id), docstore.Eq("status", string(from))), fields)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePaymentSave, err, "update payout")
	}
	return n > 0, nil
}
