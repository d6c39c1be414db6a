package orders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/brandpay-backend/internal/payments"
	"github.com/angelmondragon/brandpay-backend/internal/rates"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

// SettleOrders pays out the commissions of every processed order whose settlement date
// has passed. orderID narrows the sweep to one order.
func (s *service) SettleOrders(ctx context.Context, orderID string) (SettleReport, error) {
	due, err := s.repo.FindDueForSettlement(ctx, s.now(), orderID)
	if err != nil {
		return SettleReport{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders due for settlement")
	}

	var (
		report SettleReport
		errs   error
	)
	for i := range due {
		order := due[i]
		if order.Processing {
			continue
		}
		report.Orders++
		legs, completed, err := s.settleOrder(ctx, &order)
		report.Legs += legs
		if completed {
			report.Completed++
		}
		if err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "settlement incomplete", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		}
	}
	return report, errs
}

// settleOrder settles each leg, credits the buyer's mille and completes the order once
// nothing is outstanding. Settled legs are persisted one at a time so a retry resumes
// where the last run stopped.
func (s *service) settleOrder(ctx context.Context, order *models.Order) (legs int, completed bool, err error) {
	ctx = s.logg.WithOrderID(ctx, order.ID)
	claimed, err := s.repo.Lock(ctx, order.ID)
	if err != nil {
		return 0, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
	}
	if !claimed {
		return 0, false, nil
	}
	defer func() {
		if uerr := s.repo.Unlock(ctx, order.ID); uerr != nil {
			s.logg.Error(ctx, "release order claim", uerr)
		}
	}()

	if order.SettlementReference == "" {
		order.SettlementReference = "stl-" + order.ID
		if err := s.repo.SetFields(ctx, order.ID, map[string]any{"settlement_reference": order.SettlementReference}); err != nil {
			return 0, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp settlement reference")
		}
	}

	table, err := s.settlementTable(ctx, order)
	if err != nil {
		return 0, false, err
	}

	var errs error
	outstanding := false
	for _, leg := range order.CommissionLegs() {
		before := leg.Commission.CommissionStatus
		ok, err := s.settle(ctx, order, leg, table)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s leg: %w", leg.Tier, err))
		}
		if !ok {
			outstanding = true
		}
		if before == leg.Commission.CommissionStatus && leg.Commission.Failure == "" {
			continue
		}
		if perr := s.repo.SetFields(ctx, order.ID, map[string]any{
			models.CommissionColumn(leg.Tier): *leg.Commission,
		}); perr != nil {
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeOrderSave, perr, "record settled leg"))
			outstanding = true
			continue
		}
		if ok && !before {
			legs++
		}
	}

	if err := s.creditMille(ctx, order, table); err != nil {
		errs = multierr.Append(errs, err)
		outstanding = true
	}
	if outstanding {
		return legs, false, errs
	}

	ok, err := s.repo.Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusProcessed}, map[string]any{
		"status": string(enums.OrderStatusCompleted),
	})
	if err != nil {
		return legs, false, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order"))
	}
	if ok {
		order.Status = enums.OrderStatusCompleted
		s.logg.Info(ctx, "order settled")
	}
	return legs, ok, errs
}

// settlementTable is the order's own snapshot extended with live rates for currencies
// the snapshot lacks.
func (s *service) settlementTable(ctx context.Context, order *models.Order) (rates.Table, error) {
	table := rates.FromModel(order.Rates)
	needed := []enums.Currency{order.OrderCurrency, enums.CurrencyNGN}
	for _, leg := range order.CommissionLegs() {
		if !leg.Commission.IsZero() {
			needed = append(needed, leg.Commission.OwnerCurrency)
		}
	}
	missing := false
	for _, code := range needed {
		if _, ok := table.Rate(code); !ok && !code.IsZero() {
			missing = true
			break
		}
	}
	if !missing {
		return table, nil
	}
	live, err := s.rates.Snapshot(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRates, err, "exchange rates unavailable")
	}
	for _, code := range needed {
		if _, ok := table.Rate(code); ok || code.IsZero() {
			continue
		}
		if err := table.Extend(live, code); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// settle pays one commission leg. It is a no-op for a leg already settled. Small
// amounts and legs without complete bank details go to the owner's wallet; the rest
// become payout payments for the transfer batch.
func (s *service) settle(ctx context.Context, order *models.Order, leg models.CommissionLeg, table rates.Table) (bool, error) {
	c := leg.Commission
	if c.IsZero() || c.CommissionStatus {
		return true, nil
	}
	now := s.now()
	if !c.Amount.IsPositive() {
		c.CommissionStatus = true
		c.SettledAt = &now
		c.Failure = ""
		return true, nil
	}

	ownerCurrency := c.OwnerCurrency
	if ownerCurrency.IsZero() {
		ownerCurrency = c.Currency
	}
	amount, err := table.Convert(c.Amount, c.Currency, ownerCurrency)
	if err != nil {
		return false, err
	}
	inNaira, err := table.Convert(c.Amount, c.Currency, enums.CurrencyNGN)
	if err != nil {
		return false, err
	}

	gateway := s.payoutVia
	if inNaira.LessThan(s.threshold) || !c.Bank.Complete() {
		gateway = enums.GatewayWallet
	}

	paymentID := fmt.Sprintf("com-%s-%s", order.ID, leg.Tier)
	if prior, err := s.payments.Get(ctx, paymentID); err == nil && settledPayment(prior) {
		s.markLegSettled(c, prior.ID, prior.Gateway, now)
		return true, nil
	}

	in := payments.Input{
		ID:          paymentID,
		ReferenceID: order.SettlementReference,
		UserID:      c.OwnerUserID,
		BrandID:     c.BrandID,
		WalletID:    c.WalletID,
		Amount:      amount,
		Currency:    ownerCurrency,
		TrnxType:    enums.TrnxTypeCommission,
		Description: fmt.Sprintf("%s commission on order %s", leg.Tier, order.ID),
		Others:      models.JSONMap{"orderId": order.ID, "tier": string(leg.Tier)},
	}
	if gateway == enums.GatewayWallet {
		in.Type = enums.PaymentTypeCredit
		in.Pay = true
	} else {
		in.Type = enums.PaymentTypePayout
		in.TrnxType = enums.TrnxTypePayout
		in.Gateway = gateway
		in.Bank = c.Bank
		in.FulfillmentDate = &now
	}

	res, err := s.payments.Process(ctx, in)
	if err != nil || !(res.Credited || res.Payout) {
		if err == nil {
			err = pkgerrors.New(pkgerrors.CodeUnexpected, res.Msg)
		}
		c.Failure = res.Msg
		if c.Failure == "" {
			c.Failure = pkgerrors.PublicMessage(err)
		}
		return false, err
	}
	s.markLegSettled(c, res.Payment.ID, gateway, now)
	s.metrics.IncCommissionSettled(string(leg.Tier), string(gateway))
	return true, nil
}

func (s *service) markLegSettled(c *models.Commission, paymentID string, gateway enums.Gateway, at time.Time) {
	c.CommissionStatus = true
	c.PaymentID = paymentID
	c.Gateway = gateway
	c.SettledAt = &at
	c.Failure = ""
}

func settledPayment(p *models.Payment) bool {
	switch p.Type {
	case enums.PaymentTypeCredit:
		return p.Status == enums.PaymentStatusCompleted
	case enums.PaymentTypePayout:
		return p.Status != enums.PaymentStatusFailed && p.Status != enums.PaymentStatusPending
	}
	return false
}

// creditMille credits the buyer's reward points once per order.
func (s *service) creditMille(ctx context.Context, order *models.Order, table rates.Table) error {
	if order.MilleCredited || !order.Mille.IsPositive() {
		return nil
	}
	buyer, err := s.users.GetUser(ctx, order.UserID)
	if err != nil {
		return err
	}
	currency := buyer.Wallet.Currency
	if currency.IsZero() {
		currency = buyer.DefaultCurrency
	}
	amount := order.Mille
	if !currency.Equal(order.OrderCurrency) {
		if _, ok := table.Rate(currency); !ok {
			live, err := s.rates.Snapshot(ctx)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeRates, err, "exchange rates unavailable")
			}
			if err := table.Extend(live, currency); err != nil {
				return err
			}
		}
		if amount, err = table.Convert(order.Mille, order.OrderCurrency, currency); err != nil {
			return err
		}
	}

	paymentID := "mille-" + order.ID
	prior, perr := s.payments.Get(ctx, paymentID)
	if perr != nil || prior.Status != enums.PaymentStatusCompleted {
		res, err := s.payments.Process(ctx, payments.Input{
			ID:          paymentID,
			ReferenceID: order.SettlementReference,
			UserID:      buyer.ID,
			BrandID:     order.BrandID,
			WalletID:    buyer.Wallet.ID,
			Amount:      amount,
			Currency:    currency,
			TrnxType:    enums.TrnxTypeShare,
			Type:        enums.PaymentTypeCredit,
			Pay:         true,
			Description: fmt.Sprintf("Reward points for order %s", order.ID),
		})
		if err != nil {
			return err
		}
		if !res.Credited {
			return pkgerrors.New(pkgerrors.CodeUnexpected, res.Msg)
		}
	}

	if err := s.repo.SetFields(ctx, order.ID, map[string]any{"mille_credited": true}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOrderSave, err, "record mille credit")
	}
	order.MilleCredited = true
	return nil
}
