package orders

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/multierr"

	"github.com/angelmondragon/brandpay-backend/internal/fulfillment"
	"github.com/angelmondragon/brandpay-backend/internal/payments"
	"github.com/angelmondragon/brandpay-backend/internal/rates"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

// fulfillable reports whether an order may start a fulfillment attempt.
func fulfillable(o models.Order) bool {
	return o.Status == enums.OrderStatusPaid && o.FulfillID == "" && !o.Processing
}

// FulfillPaidOrders sweeps every paid order awaiting fulfillment.
func (s *service) FulfillPaidOrders(ctx context.Context) (FulfillReport, error) {
	orders, err := s.repo.FindFulfillable(ctx)
	if err != nil {
		return FulfillReport{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load paid orders")
	}
	return s.FulfillOrders(ctx, orders)
}

// FulfillOrders attempts delivery of every eligible order. The advisory lock is the only
// de-duplication: an order claimed elsewhere is skipped.
func (s *service) FulfillOrders(ctx context.Context, orders []models.Order) (FulfillReport, error) {
	var (
		report FulfillReport
		errs   error
	)
	for i := range orders {
		order := orders[i]
		if !fulfillable(order) {
			report.Skipped++
			continue
		}
		report.Attempted++
		status, err := s.fulfillOne(ctx, &order)
		if err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "fulfillment failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		switch status {
		case "":
			report.Skipped++
		case enums.OrderStatusRefunded, enums.OrderStatusCancelled:
			report.Refunded++
		case enums.OrderStatusProcessed:
			report.Fulfilled++
			s.settleLater(ctx, order.ID)
		default:
			report.Fulfilled++
		}
	}
	return report, errs
}

// fulfillOne claims, dispatches and records one order. The claim is released on every
// path, including a panicking handler.
func (s *service) fulfillOne(ctx context.Context, order *models.Order) (status enums.OrderStatus, err error) {
	ctx = s.logg.WithOrderID(ctx, order.ID)
	claimed, err := s.repo.Lock(ctx, order.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
	}
	if !claimed {
		s.logg.Debug(ctx, "order already claimed")
		return "", nil
	}
	defer func() {
		if uerr := s.repo.Unlock(ctx, order.ID); uerr != nil {
			s.logg.Error(ctx, "release order claim", uerr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			status = ""
			err = pkgerrors.New(pkgerrors.CodeUnexpected, fmt.Sprintf("fulfillment panic: %v", r))
		}
	}()

	// Re-read under the claim; another worker may have finished it.
	current, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if current.Status != enums.OrderStatusPaid || current.FulfillID != "" {
		return "", nil
	}
	*order = *current

	product, err := s.products.FetchProductByID(ctx, order.ProductID)
	if err != nil {
		return "", err
	}
	brand, err := s.brands.FetchBrand(ctx, order.BrandID)
	if err != nil {
		return "", err
	}
	user, err := s.users.GetUser(ctx, order.UserID)
	if err != nil {
		return "", err
	}

	outcome, err := s.fulfillment.Fulfill(ctx, fulfillment.Request{
		Product: product,
		Order:   order,
		Brand:   brand,
		User:    user,
	})
	if err != nil {
		return "", err
	}

	if outcome.Invalid() {
		res, err := s.CancelAndRefund(ctx, order)
		if err != nil {
			s.logg.Error(ctx, "refund after invalid fulfillment", err)
		}
		if res.Order != nil {
			return res.Order.Status, nil
		}
		return enums.OrderStatusCancelled, nil
	}

	if !order.Status.CanTransitionTo(outcome.Status) {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, outcome.Status))
	}
	fields := map[string]any{
		"status":     string(outcome.Status),
		"fulfill_id": outcome.FulfillID,
		"tokens":     pq.StringArray(outcome.Tokens),
		"partner":    outcome.Partner,
	}
	if outcome.Response != nil {
		fields["fulfill_response"] = models.JSONMap(outcome.Response)
	}
	ok, err := s.repo.Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPaid}, fields)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record fulfillment")
	}
	if !ok {
		s.logg.Error(s.logg.WithField(ctx, "fulfill_id", outcome.FulfillID), "fulfillment result not recorded",
			pkgerrors.New(pkgerrors.CodeStateConflict, "order left paid while it was being fulfilled"))
		return "", nil
	}
	order.Status = outcome.Status
	order.FulfillID = outcome.FulfillID
	order.Tokens = outcome.Tokens
	s.logg.Info(s.logg.WithField(ctx, "status", outcome.Status.String()), "order fulfilled")
	return outcome.Status, nil
}

// settleLater settles a freshly processed order in the background once its claim is
// released. Nothing is paid before the settlement date; the settlement sweep covers
// orders that become due later.
func (s *service) settleLater(ctx context.Context, id string) {
	detached := context.WithoutCancel(s.logg.WithOrderID(ctx, id))
	s.async(func() {
		if _, err := s.SettleOrders(detached, id); err != nil {
			s.logg.Error(detached, "settle after fulfillment", err)
		}
	})
}

// Cancel cancels and refunds a buyer's own order.
func (s *service) Cancel(ctx context.Context, userID, orderID string) (RefundResult, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return RefundResult{}, err
	}
	if order.UserID != userID {
		return RefundResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusPaid && order.Status != enums.OrderStatusCancelled {
		return RefundResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID)
	claimed, err := s.repo.Lock(ctx, order.ID)
	if err != nil {
		return RefundResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
	}
	if !claimed {
		return RefundResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order is being fulfilled")
	}
	defer func() {
		if uerr := s.repo.Unlock(ctx, order.ID); uerr != nil {
			s.logg.Error(ctx, "release order claim", uerr)
		}
	}()

	// Re-read under the claim; a fulfillment may have finished first.
	current, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return RefundResult{}, err
	}
	if current.Status != enums.OrderStatusPaid && current.Status != enums.OrderStatusCancelled {
		return RefundResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
	}
	return s.CancelAndRefund(ctx, current)
}

// CancelAndRefund cancels the order and credits its value back to the buyer in their
// default currency. A failed credit leaves the order cancelled for manual follow-up.
func (s *service) CancelAndRefund(ctx context.Context, order *models.Order) (RefundResult, error) {
	ctx = s.logg.WithOrderID(ctx, order.ID)
	out := RefundResult{Order: order}

	if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
		return out, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot cancel a %s order", order.Status))
	}
	user, err := s.users.GetUser(ctx, order.UserID)
	if err != nil {
		return out, err
	}
	table, err := s.rates.Snapshot(ctx)
	if err != nil {
		s.logg.Warn(ctx, "live rates unavailable, refunding at order snapshot")
		table = rates.FromModel(order.Rates)
	}

	if order.Status != enums.OrderStatusCancelled {
		ok, err := s.repo.Transition(ctx, order.ID, []enums.OrderStatus{order.Status}, map[string]any{
			"status": string(enums.OrderStatusCancelled),
		})
		if err != nil {
			return out, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return out, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed while cancelling")
		}
		order.Status = enums.OrderStatusCancelled
	}

	currency := user.DefaultCurrency
	if currency.IsZero() {
		currency = order.OrderCurrency
	}
	amount, err := table.Convert(order.Amount, order.OrderCurrency, currency)
	if err != nil {
		s.logg.Error(ctx, "refund conversion failed", err)
		return out, err
	}

	refundID := "refund-" + order.ID
	if prior, err := s.payments.Get(ctx, refundID); err == nil && prior.Status == enums.PaymentStatusCompleted {
		out.Payment = prior
		return s.finishRefund(ctx, out)
	}

	res, err := s.payments.Process(ctx, payments.Input{
		ID:          refundID,
		ReferenceID: order.ReferenceID,
		UserID:      user.ID,
		BrandID:     order.BrandID,
		WalletID:    user.Wallet.ID,
		Amount:      amount,
		Currency:    currency,
		TrnxType:    enums.TrnxTypeRefund,
		Type:        enums.PaymentTypeCredit,
		Pay:         true,
		Description: fmt.Sprintf("Refund for order %s", order.ID),
	})
	out.Payment = res.Payment
	if err != nil || !res.Credited {
		if err == nil {
			err = pkgerrors.New(pkgerrors.CodeUnexpected, res.Msg)
		}
		s.logg.Error(ctx, "refund credit failed, order left cancelled", err)
		return out, err
	}
	return s.finishRefund(ctx, out)
}

func (s *service) finishRefund(ctx context.Context, out RefundResult) (RefundResult, error) {
	ok, err := s.repo.Transition(ctx, out.Order.ID, []enums.OrderStatus{enums.OrderStatusCancelled}, map[string]any{
		"status": string(enums.OrderStatusRefunded),
	})
	if err != nil {
		return out, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order refunded")
	}
	if ok {
		out.Order.Status = enums.OrderStatusRefunded
	}
	out.Refunded = out.Order.Status == enums.OrderStatusRefunded
	s.logg.Info(ctx, "order refunded")
	return out, nil
}

// ConfirmPayment verifies a gateway checkout and, once its payment has cleared, moves the
// reference's orders to paid and fulfills them.
func (s *service) ConfirmPayment(ctx context.Context, reference string) ([]models.Order, error) {
	ctx = s.logg.WithReference(ctx, reference)
	if _, err := s.payments.VerifyCharge(ctx, reference); err != nil {
		return nil, err
	}
	list, err := s.payments.ByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		if p.TrnxType == enums.TrnxTypePurchase && p.Status == enums.PaymentStatusPaid {
			return s.markPaid(ctx, reference)
		}
	}
	return s.GetByReference(ctx, "", reference)
}

// ReconcileCharges verifies every pending gateway charge and confirms the checkouts
// that cleared. Returns the number of checkouts confirmed.
func (s *service) ReconcileCharges(ctx context.Context) (int, error) {
	changed, errs := s.payments.PendingCharges(ctx)
	confirmed := 0
	for _, p := range changed {
		if p.TrnxType != enums.TrnxTypePurchase || p.Status != enums.PaymentStatusPaid {
			continue
		}
		if _, err := s.markPaid(s.logg.WithReference(ctx, p.ReferenceID), p.ReferenceID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		confirmed++
	}
	return confirmed, errs
}
