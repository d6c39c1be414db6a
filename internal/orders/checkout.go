package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/internal/payments"
	"github.com/angelmondragon/brandpay-backend/internal/pricing"
	"github.com/angelmondragon/brandpay-backend/internal/rates"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

// seedCurrencies are always present in an order's rate snapshot.
var seedCurrencies = []enums.Currency{enums.CurrencyUSD, enums.CurrencyNGN, enums.CurrencyGHS}

// checkout carries the resolved context shared by every line of one submission.
type checkout struct {
	in       CheckoutInput
	buyer    *models.User
	brand    *models.Brand
	currency enums.Currency
	snapshot rates.Table
	working  rates.Table
	existing map[string][]models.Order
	// previous holds the pending lines of an earlier submission of the reference.
	previous []models.Order
}

// CreateOrUpdateOrder prices the cart, stores one pending order per line, charges the
// aggregate payment and, when it clears, fulfills the paid lines. Line failures are
// collected in FailedItems and never abort the checkout.
func (s *service) CreateOrUpdateOrder(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	defer s.fire(ctx, triggerAlways)

	if len(in.Cart) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	co, existingPayment, done, err := s.prepareCheckout(ctx, in)
	if err != nil {
		return nil, err
	}
	if done != nil {
		return done, nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"reference": co.in.ReferenceID,
		"user_id":   co.buyer.ID,
		"brand_id":  co.brand.ID,
	})

	var (
		lines  []models.Order
		failed []FailedItem
	)
	for _, line := range in.Cart {
		order, err := s.priceLine(ctx, co, line)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", line.ProductID), "cart line rejected")
			failed = append(failed, FailedItem{ProductID: line.ProductID, Reason: pkgerrors.PublicMessage(err)})
			continue
		}
		lines = append(lines, *order)
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoValidItems, "no valid items in cart").WithDetails(failed)
	}

	paymentID := existingPayment
	if paymentID == "" {
		paymentID = uuid.NewString()
	}
	snapshot := co.working.Model()
	for i := range lines {
		lines[i].PaymentID = paymentID
		lines[i].Rates = snapshot
	}

	saved := s.repo.SaveAll(ctx, lines)
	if err := saved.Err(); err != nil {
		s.logg.Error(ctx, "order save failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderSave, err, "save orders")
	}
	kept := lines[:0]
	for _, order := range lines {
		if ferr, ok := saved.Failed[order.ID]; ok {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "order line save failed", ferr)
			failed = append(failed, FailedItem{ProductID: order.ProductID, Reason: pkgerrors.MetadataFor(pkgerrors.CodeOrderSave).PublicMessage})
			continue
		}
		kept = append(kept, order)
	}
	lines = kept
	if err := s.abandonStale(ctx, co.previous, lines); err != nil {
		s.logg.Error(ctx, "retire stale order lines", err)
		return nil, err
	}

	total := decimal.Zero
	for _, order := range lines {
		total = total.Add(order.Amount)
	}
	payCurrency := co.buyer.DefaultCurrency
	if payCurrency.IsZero() {
		payCurrency = co.currency
	}
	amount, err := co.working.Convert(total, co.currency, payCurrency)
	if err != nil {
		return nil, err
	}

	res, payErr := s.payments.Process(ctx, payments.Input{
		ID:          paymentID,
		ReferenceID: co.in.ReferenceID,
		UserID:      co.buyer.ID,
		BrandID:     co.brand.ID,
		WalletID:    co.buyer.Wallet.ID,
		Amount:      amount,
		Currency:    payCurrency,
		Gateway:     co.in.Gateway,
		TrnxType:    enums.TrnxTypePurchase,
		Type:        enums.PaymentTypeDebit,
		Pay:         co.in.Gateway == enums.GatewayWallet,
		Description: fmt.Sprintf("Checkout %s", co.in.ReferenceID),
		Others:      lineSnapshot(lines),
	})
	if payErr != nil {
		if !res.Inserted {
			return nil, payErr
		}
		s.logg.Warn(ctx, "checkout payment declined")
		return &CheckoutResult{
			Success:     false,
			Code:        string(enums.PaymentStatusFailed),
			Msg:         res.Msg,
			ReferenceID: co.in.ReferenceID,
			Orders:      lines,
			Payment:     res.Payment,
			FailedItems: failedOrEmpty(failed),
		}, nil
	}

	out := &CheckoutResult{
		Success:     true,
		Code:        string(res.Payment.Status),
		Msg:         res.Msg,
		ReferenceID: co.in.ReferenceID,
		Orders:      lines,
		Payment:     res.Payment,
		FailedItems: failedOrEmpty(failed),
	}
	if !res.Debited {
		return out, nil
	}

	paid, err := s.markPaid(ctx, co.in.ReferenceID)
	if err != nil {
		s.logg.Error(ctx, "mark checkout paid", err)
		return out, nil
	}
	out.Orders = paid
	return out, nil
}

// prepareCheckout resolves buyer, brand and rates, and loads any earlier submission of
// the same reference. A non-nil result means the reference was already paid.
func (s *service) prepareCheckout(ctx context.Context, in CheckoutInput) (*checkout, string, *CheckoutResult, error) {
	buyer, err := s.users.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, "", nil, pkgerrors.Wrap(pkgerrors.CodeSiteInfo, err, "buyer could not be resolved")
	}
	brand, err := s.brands.FetchBrand(ctx, in.BrandID)
	if err != nil {
		return nil, "", nil, pkgerrors.Wrap(pkgerrors.CodeSiteInfo, err, "brand could not be resolved")
	}
	if brand.OwnerID == "" {
		return nil, "", nil, pkgerrors.New(pkgerrors.CodeSiteInfo, "brand owner could not be resolved")
	}

	snapshot, err := s.rates.Snapshot(ctx)
	if err != nil {
		return nil, "", nil, pkgerrors.Wrap(pkgerrors.CodeRates, err, "exchange rates unavailable")
	}
	currency := in.Currency.Normalize()
	if currency.IsZero() {
		currency = buyer.DefaultCurrency.Normalize()
	}
	seed := append([]enums.Currency{currency, buyer.DefaultCurrency}, seedCurrencies...)
	working, err := snapshot.Subset(seed...)
	if err != nil {
		return nil, "", nil, pkgerrors.Wrap(pkgerrors.CodeRates, err, "exchange rates unavailable")
	}

	in.ReferenceID = strings.TrimSpace(in.ReferenceID)
	if in.ReferenceID == "" {
		in.ReferenceID = uuid.NewString()
	}
	if in.Gateway == "" {
		in.Gateway = enums.GatewayWallet
	}
	if !in.Gateway.IsValid() {
		return nil, "", nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "invalid gateway")
	}

	co := &checkout{
		in:       in,
		buyer:    buyer,
		brand:    brand,
		currency: currency,
		snapshot: snapshot,
		working:  working,
		existing: map[string][]models.Order{},
	}

	previous, err := s.repo.FindByReference(ctx, in.ReferenceID)
	if err != nil {
		return nil, "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load previous submission")
	}
	if len(previous) == 0 {
		return co, "", nil, nil
	}
	if previous[0].UserID != buyer.ID {
		return nil, "", nil, pkgerrors.New(pkgerrors.CodeConflict, "reference belongs to another checkout")
	}
	var pending []models.Order
	for _, order := range previous {
		switch order.Status {
		case enums.OrderStatusAbandoned:
		case enums.OrderStatusPending:
			pending = append(pending, order)
		default:
			return nil, "", s.alreadySubmitted(ctx, in.ReferenceID, previous), nil
		}
	}

	paymentID := previous[0].PaymentID
	if paymentID != "" {
		payment, err := s.payments.Get(ctx, paymentID)
		switch {
		case err == nil && (payment.Status == enums.PaymentStatusPaid || payment.Status == enums.PaymentStatusCompleted):
			return nil, "", s.resumePaid(ctx, in.ReferenceID, previous), nil
		case err != nil && pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound:
			return nil, "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load previous payment")
		}
	}

	for _, order := range pending {
		co.existing[order.ProductID] = append(co.existing[order.ProductID], order)
	}
	co.previous = pending
	return co, paymentID, nil, nil
}

// resumePaid finishes a submission whose payment cleared before its lines were marked
// paid. The payment is never charged again.
func (s *service) resumePaid(ctx context.Context, reference string, previous []models.Order) *CheckoutResult {
	orders, err := s.markPaid(s.logg.WithReference(ctx, reference), reference)
	if err != nil {
		s.logg.Error(s.logg.WithReference(ctx, reference), "resume paid checkout", err)
		orders = previous
	}
	return s.alreadySubmitted(ctx, reference, orders)
}

// abandonStale retires the earlier submission's pending lines that this submission no
// longer carries, so only lines covered by the new payment can become paid.
func (s *service) abandonStale(ctx context.Context, previous, lines []models.Order) error {
	keep := make(map[string]struct{}, len(lines))
	for _, order := range lines {
		keep[order.ID] = struct{}{}
	}
	for _, order := range previous {
		if _, ok := keep[order.ID]; ok {
			continue
		}
		_, err := s.repo.Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPending}, map[string]any{
			"status": string(enums.OrderStatusAbandoned),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOrderSave, err, "abandon stale order line")
		}
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID), "stale order line abandoned")
	}
	return nil
}

func (s *service) alreadySubmitted(ctx context.Context, reference string, orders []models.Order) *CheckoutResult {
	out := &CheckoutResult{
		Success:     true,
		Code:        string(enums.PaymentStatusPaid),
		Msg:         "Order already submitted",
		ReferenceID: reference,
		Orders:      orders,
		FailedItems: []FailedItem{},
	}
	if id := orders[0].PaymentID; id != "" {
		if payment, err := s.payments.Get(ctx, id); err == nil {
			out.Payment = payment
			out.Code = string(payment.Status)
		}
	}
	return out
}

// priceLine turns one cart line into a pending order.
func (s *service) priceLine(ctx context.Context, co *checkout, line CartLine) (*models.Order, error) {
	if line.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "quantity must be at least 1")
	}
	stored, err := s.products.FetchProductByID(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	product := s.products.ModProduct(*stored, co.brand)
	if err := co.working.Extend(co.snapshot, product.Currency); err != nil {
		return nil, err
	}
	rules, err := pricing.ParseRules(product.PriceRules)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "invalid price rule")
	}
	unit, err := co.working.Convert(pricing.CalculateFinalPrice(product.Price, rules), product.Currency, co.currency)
	if err != nil {
		return nil, err
	}

	now := s.now()
	settleAt := now.Add(s.delay)
	order := &models.Order{
		ID:             s.reuseID(co, product.ID),
		ReferenceID:    co.in.ReferenceID,
		Status:         enums.OrderStatusPending,
		ProductID:      product.ID,
		ProductName:    product.Name,
		BrandID:        co.brand.ID,
		UserID:         co.buyer.ID,
		UnitPrice:      unit,
		Amount:         unit.Mul(decimal.NewFromInt(int64(line.Quantity))),
		OrderCurrency:  co.currency,
		Quantity:       line.Quantity,
		Type:           product.Type,
		Partner:        product.Partner,
		SettlementDate: &settleAt,
	}
	if len(line.Details) > 0 {
		order.FulfillResponse = models.JSONMap(line.Details)
	}

	rate := co.brand.MilleRate
	if !rate.IsPositive() {
		rate = s.milleRate
	}
	order.Mille = pricing.Mille(order.Amount, rate)

	if err := s.processOrder(ctx, order, &product, co.brand); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID,
			"reason":     err.Error(),
		}), "commission resolution failed, storing minimal order")
		minimal(order)
	}
	return order, nil
}

func (s *service) reuseID(co *checkout, productID string) string {
	if queue := co.existing[productID]; len(queue) > 0 {
		co.existing[productID] = queue[1:]
		return queue[0].ID
	}
	return uuid.NewString()
}

// minimal degrades an order whose commissions could not be resolved to a single unit
// with no commission legs.
func minimal(order *models.Order) {
	order.Quantity = 1
	order.Amount = order.UnitPrice
	for _, leg := range order.CommissionLegs() {
		*leg.Commission = models.Commission{}
	}
}

// commissionParty is a brand and the rate it earns on one leg.
type commissionParty struct {
	tier  enums.CommissionTier
	brand *models.Brand
	rate  decimal.Decimal
}

// processOrder resolves the five commission legs of an order. Each leg snapshots the
// receiving owner's wallet and bank details. A brand earns on its first leg only.
func (s *service) processOrder(ctx context.Context, order *models.Order, product *models.Product, seller *models.Brand) error {
	owner, err := s.brands.FetchBrand(ctx, product.BrandID)
	if err != nil {
		return err
	}
	productChain, err := s.brands.Parents(ctx, owner.ID)
	if err != nil {
		return err
	}
	sellerChain, err := s.brands.Parents(ctx, seller.ID)
	if err != nil {
		return err
	}

	parties := []commissionParty{
		{tier: enums.CommissionTierProductBrand, brand: owner, rate: owner.SalesCommission},
		{tier: enums.CommissionTierProductParentBrand, brand: productChain.Parent},
		{tier: enums.CommissionTierOrderBrand, brand: seller, rate: seller.SalesCommission},
		{tier: enums.CommissionTierOrderParentBrand, brand: sellerChain.Parent},
		{tier: enums.CommissionTierMaster, brand: productChain.Master},
	}

	legs := map[enums.CommissionTier]models.Commission{}
	seen := map[string]struct{}{}
	for _, p := range parties {
		if p.brand == nil {
			continue
		}
		if _, dup := seen[p.brand.ID]; dup {
			continue
		}
		seen[p.brand.ID] = struct{}{}
		rate := p.rate
		if p.tier != enums.CommissionTierProductBrand && p.tier != enums.CommissionTierOrderBrand {
			rate = p.brand.ShareValue
		}

		ownerUser, err := s.users.GetUser(ctx, p.brand.OwnerID)
		if err != nil {
			return fmt.Errorf("resolve owner of %s: %w", p.brand.ID, err)
		}
		ownerCurrency := ownerUser.Wallet.Currency
		if ownerCurrency.IsZero() {
			ownerCurrency = ownerUser.DefaultCurrency
		}
		legs[p.tier] = models.Commission{
			Tier:          p.tier,
			BrandID:       p.brand.ID,
			Rate:          rate,
			Amount:        pricing.Commission(order.Amount, rate),
			Currency:      order.OrderCurrency,
			OwnerUserID:   ownerUser.ID,
			WalletID:      ownerUser.Wallet.ID,
			OwnerCurrency: ownerCurrency,
			Bank:          p.brand.Bank,
		}
	}

	for _, leg := range order.CommissionLegs() {
		*leg.Commission = legs[leg.Tier]
	}
	return nil
}

// markPaid moves a reference's pending lines to paid, fulfills them and returns the final set.
func (s *service) markPaid(ctx context.Context, reference string) ([]models.Order, error) {
	if _, err := s.repo.MarkReferencePaid(ctx, reference); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders paid")
	}
	orders, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload orders")
	}
	if _, err := s.FulfillOrders(ctx, orders); err != nil {
		s.logg.Error(ctx, "fulfill paid checkout", err)
	}
	return s.repo.FindByReference(ctx, reference)
}

func lineSnapshot(lines []models.Order) models.JSONMap {
	items := make([]any, 0, len(lines))
	for _, o := range lines {
		items = append(items, map[string]any{
			"orderId":   o.ID,
			"productId": o.ProductID,
			"quantity":  o.Quantity,
			"amount":    o.Amount.String(),
			"currency":  o.OrderCurrency.String(),
		})
	}
	return models.JSONMap{"items": items}
}

func failedOrEmpty(items []FailedItem) []FailedItem {
	if items == nil {
		return []FailedItem{}
	}
	return items
}
