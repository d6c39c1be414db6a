package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/brandpay-backend/internal/wallets"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

// chargeStatus is what a gateway reports about an inbound charge.
type chargeStatus struct {
	Status string
	Amount decimal.Decimal
}

// VerifyCharge confirms pending gateway charges recorded under reference. Each payment is
// claimed before the gateway is queried so concurrent verifiers never credit twice.
func (s *Service) VerifyCharge(ctx context.Context, reference string) ([]models.Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingFields, "reference is required")
	}
	var pending []models.Payment
	err := s.store.FetchMany(ctx, models.CollectionPayments,
		docstore.Where(
			docstore.Eq("reference_id", reference),
			docstore.Eq("status", string(enums.PaymentStatusPending)),
			docstore.In("gateway", []string{string(enums.GatewayPaystack), string(enums.GatewayFlutterwave)}),
		), nil, &pending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending charges")
	}

	var (
		verified []models.Payment
		errs     error
	)
	for i := range pending {
		payment := pending[i]
		ok, err := s.verifyOne(ctx, &payment)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			verified = append(verified, payment)
		}
	}
	return verified, errs
}

// PendingCharges verifies every pending gateway charge and returns the payments that changed state.
func (s *Service) PendingCharges(ctx context.Context) ([]models.Payment, error) {
	var pending []models.Payment
	err := s.store.FetchMany(ctx, models.CollectionPayments,
		docstore.Where(
			docstore.Eq("status", string(enums.PaymentStatusPending)),
			docstore.In("gateway", []string{string(enums.GatewayPaystack), string(enums.GatewayFlutterwave)}),
		), []docstore.Sort{{Field: "created_at"}}, &pending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending charges")
	}

	var (
		changed []models.Payment
		errs    error
	)
	for i := range pending {
		ok, err := s.verifyOne(ctx, &pending[i])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			changed = append(changed, pending[i])
		}
	}
	return changed, errs
}

func (s *Service) verifyOne(ctx context.Context, payment *models.Payment) (bool, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"payment_id": payment.ID,
		"reference":  payment.ReferenceID,
		"gateway":    payment.Gateway.String(),
	})
	claimed, err := s.store.Lock(ctx, models.CollectionPayments, payment.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payment")
	}
	if !claimed {
		s.logg.Debug(ctx, "payment already claimed")
		return false, nil
	}
	defer func() {
		if err := s.store.Unlock(ctx, models.CollectionPayments, payment.ID); err != nil {
			s.logg.Error(ctx, "release payment claim", err)
		}
	}()

	charge, err := s.queryGateway(ctx, payment)
	if err != nil {
		s.logg.Warn(ctx, "gateway verification failed")
		return false, err
	}

	status, changed := enums.PaymentStatusFromGateway(charge.Status)
	if !changed {
		return false, nil
	}

	fields := map[string]any{}
	switch status {
	case enums.PaymentStatusCompleted:
		if charge.Amount.IsPositive() && charge.Amount.LessThan(payment.Total()) {
			fields["status"] = string(enums.PaymentStatusFailed)
			fields["failure_reason"] = "Amount paid is less than amount due"
			break
		}
		if payment.TrnxType == enums.TrnxTypeFunding {
			out, err := s.wallets.DebitAndCredit(ctx, wallets.Request{
				Action:    enums.WalletActionCredit,
				Amount:    payment.Amount,
				WalletID:  payment.WalletID,
				Currency:  payment.Currency,
				ShareRate: payment.ShareRate,
				UserID:    payment.UserID,
				Reference: payment.ReferenceID,
			})
			if err != nil || !out.Status {
				s.logg.Error(ctx, "credit funded wallet", walletFailure(err, out))
				return false, walletFailure(err, out)
			}
			fields["status"] = string(enums.PaymentStatusCompleted)
		} else {
			fields["status"] = string(enums.PaymentStatusPaid)
		}
	default:
		fields["status"] = string(status)
		fields["failure_reason"] = fmt.Sprintf("gateway reported %s", strings.ToLower(charge.Status))
	}

	n, err := s.store.UpdateMany(ctx, models.CollectionPayments,
		docstore.Where(
			docstore.Eq("id", payment.ID),
			docstore.Eq("status", string(enums.PaymentStatusPending)),
		), fields)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePaymentSave, err, "update verified payment")
	}
	if n == 0 {
		return false, nil
	}
	payment.Status = enums.PaymentStatus(fields["status"].(string))
	if reason, ok := fields["failure_reason"].(string); ok {
		payment.FailureReason = reason
	}
	s.logg.Info(ctx, "charge verified")
	return true, nil
}

func (s *Service) queryGateway(ctx context.Context, payment *models.Payment) (chargeStatus, error) {
	switch payment.Gateway {
	case enums.GatewayPaystack:
		if s.paystack == nil {
			return chargeStatus{}, pkgerrors.New(pkgerrors.CodeDependency, "paystack not configured")
		}
		tx, err := s.paystack.VerifyTransaction(ctx, payment.ReferenceID)
		if err != nil {
			return chargeStatus{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify paystack charge")
		}
		return chargeStatus{Status: tx.Status, Amount: tx.Amount}, nil
	case enums.GatewayFlutterwave:
		if s.flutterwave == nil {
			return chargeStatus{}, pkgerrors.New(pkgerrors.CodeDependency, "flutterwave not configured")
		}
		tx, err := s.flutterwave.VerifyTransaction(ctx, payment.ReferenceID)
		if err != nil {
			return chargeStatus{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify flutterwave charge")
		}
		return chargeStatus{Status: tx.Status, Amount: tx.Amount}, nil
	}
	return chargeStatus{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "payment gateway cannot be verified")
}
