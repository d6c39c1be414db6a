package orders

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/brandpay-backend/internal/brands"
	"github.com/angelmondragon/brandpay-backend/internal/fulfillment"
	"github.com/angelmondragon/brandpay-backend/internal/ledger"
	"github.com/angelmondragon/brandpay-backend/internal/payments"
	product "github.com/angelmondragon/brandpay-backend/internal/products"
	"github.com/angelmondragon/brandpay-backend/internal/rates"
	"github.com/angelmondragon/brandpay-backend/internal/users"
	"github.com/angelmondragon/brandpay-backend/internal/wallets"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore/docstoretest"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingTrigger struct {
	mu      sync.Mutex
	targets []string
}

func (r *recordingTrigger) Fire(_ context.Context, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
}

type fixture struct {
	svc     *service
	store   docstore.Store
	router  *fulfillment.Router
	clock   *manualClock
	trigger *recordingTrigger
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := docstoretest.NewSQLStore(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	clock := &manualClock{now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}

	journal, err := ledger.NewService(ledger.NewRepository(store))
	require.NoError(t, err)
	walletSvc, err := wallets.NewService(wallets.ServiceParams{Store: store, Ledger: journal, Logger: logg})
	require.NoError(t, err)
	paymentSvc, err := payments.NewService(payments.ServiceParams{Store: store, Wallets: walletSvc, Logger: logg, Clock: clock.Now})
	require.NoError(t, err)
	rateSvc, err := rates.NewService(rates.ServiceParams{Store: store, Logger: logg})
	require.NoError(t, err)
	brandSvc, err := brands.NewService(brands.NewRepository(store))
	require.NoError(t, err)
	productSvc, err := product.NewService(product.NewRepository(store))
	require.NoError(t, err)
	userSvc, err := users.NewService(users.NewRepository(store))
	require.NoError(t, err)

	router := fulfillment.NewDefaultRouter(nil)
	trigger := &recordingTrigger{}
	svc, err := NewService(ServiceParams{
		Repo:            NewRepository(store),
		Products:        productSvc,
		Brands:          brandSvc,
		Users:           userSvc,
		Rates:           rateSvc,
		Payments:        paymentSvc,
		Fulfillment:     router,
		Trigger:         trigger,
		Logger:          logg,
		Clock:           clock.Now,
		SettlementDelay: 24 * time.Hour,
		WalletThreshold: decimal.NewFromInt(1000),
		MilleRate:       decimal.NewFromInt(1),
		PayoutGateway:   enums.GatewayPaystack,
	})
	require.NoError(t, err)
	impl := svc.(*service)
	impl.async = func(fn func()) { fn() }

	f := fixture{svc: impl, store: store, router: router, clock: clock, trigger: trigger}
	f.seed(t)
	return f
}

func (f fixture) put(t *testing.T, collection string, doc models.Document) {
	t.Helper()
	require.NoError(t, f.store.Upsert(context.Background(), collection, doc, true))
}

func wallet(id string, balance int64) models.UserWallet {
	return models.UserWallet{ID: id, Balance: decimal.NewFromInt(balance), ShareValue: decimal.Zero, Currency: enums.CurrencyNGN}
}

// seed builds the hierarchy master <- region <- shop (seller) and master <- vendor (product owner).
func (f fixture) seed(t *testing.T) {
	for code, rate := range map[string]int64{"USD": 1, "NGN": 1500, "GHS": 15} {
		f.put(t, models.CollectionCurrencies, &models.CurrencyRate{ID: code, Code: code, Rate: decimal.NewFromInt(rate)})
	}
	f.put(t, models.CollectionUsers, &models.User{ID: "buyer-1", DefaultCurrency: enums.CurrencyNGN, Wallet: wallet("wallet-1", 5000)})
	for _, owner := range []string{"master", "region", "shop", "vendor"} {
		f.put(t, models.CollectionUsers, &models.User{ID: "owner-" + owner, DefaultCurrency: enums.CurrencyNGN, Wallet: wallet("w-"+owner, 0)})
	}
	f.put(t, models.CollectionBrands, &models.Brand{ID: "master", OwnerID: "owner-master", ShareValue: decimal.NewFromInt(2), SalesCommission: decimal.NewFromInt(1)})
	f.put(t, models.CollectionBrands, &models.Brand{ID: "region", ParentID: "master", OwnerID: "owner-region", ShareValue: decimal.NewFromInt(3)})
	f.put(t, models.CollectionBrands, &models.Brand{ID: "shop", ParentID: "region", OwnerID: "owner-shop", SalesCommission: decimal.NewFromInt(5)})
	f.put(t, models.CollectionBrands, &models.Brand{ID: "vendor", ParentID: "master", OwnerID: "owner-vendor", SalesCommission: decimal.NewFromInt(10)})
	f.put(t, models.CollectionProducts, &models.Product{
		ID: "p1", BrandID: "vendor", Name: "E-book", Type: enums.ProductTypeDigital,
		Price: decimal.NewFromInt(1000), Currency: enums.CurrencyNGN, Active: true,
	})
	f.put(t, models.CollectionProducts, &models.Product{
		ID: "p3", BrandID: "vendor", Name: "Course", Type: enums.ProductTypeCourse,
		Price: decimal.NewFromInt(500), Currency: enums.CurrencyNGN, Active: true,
	})
}

func (f fixture) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	var u models.User
	require.NoError(t, f.store.FetchOne(context.Background(), models.CollectionUsers, userID, &u))
	return u.Wallet.Balance
}

func (f fixture) order(t *testing.T, id string) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, f.store.FetchOne(context.Background(), models.CollectionOrders, id, &o))
	return o
}

func checkoutInput(ref string, lines ...CartLine) CheckoutInput {
	return CheckoutInput{
		UserID:      "buyer-1",
		BrandID:     "shop",
		ReferenceID: ref,
		Currency:    enums.CurrencyNGN,
		Gateway:     enums.GatewayWallet,
		Cart:        lines,
	}
}

func TestCheckoutPaysFromWalletAndFulfills(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateOrUpdateOrder(context.Background(), checkoutInput("chk-1", CartLine{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "paid", res.Code)
	require.Len(t, res.Orders, 1)
	assert.True(t, res.Orders[0].Amount.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, res.Payment)
	assert.Equal(t, enums.PaymentStatusPaid, res.Payment.Status)
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(4000)))

	order := res.Orders[0]
	assert.Equal(t, enums.OrderStatusProcessed, order.Status)
	assert.Len(t, order.Tokens, 1)
	assert.False(t, order.Processing)
	assert.Equal(t, res.Payment.ID, order.PaymentID)
	assert.Contains(t, f.trigger.targets, "always")
}

func TestCheckoutIsolatesFailedLines(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateOrUpdateOrder(context.Background(), checkoutInput("chk-2",
		CartLine{ProductID: "p1", Quantity: 1},
		CartLine{ProductID: "missing", Quantity: 1},
		CartLine{ProductID: "p3", Quantity: 2},
	))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Orders, 2)
	require.Len(t, res.FailedItems, 1)
	assert.Equal(t, "missing", res.FailedItems[0].ProductID)
	assert.True(t, res.Payment.Amount.Equal(decimal.NewFromInt(2000)))
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(3000)))
}

func TestCheckoutRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrUpdateOrder(ctx, checkoutInput("chk-3"))
	assert.Equal(t, pkgerrors.CodeEmptyCart, pkgerrors.CodeOf(err))

	_, err = f.svc.CreateOrUpdateOrder(ctx, checkoutInput("chk-3", CartLine{ProductID: "missing", Quantity: 1}))
	assert.Equal(t, pkgerrors.CodeNoValidItems, pkgerrors.CodeOf(err))

	in := checkoutInput("chk-3", CartLine{ProductID: "p1", Quantity: 1})
	in.BrandID = "unknown"
	_, err = f.svc.CreateOrUpdateOrder(ctx, in)
	assert.Equal(t, pkgerrors.CodeSiteInfo, pkgerrors.CodeOf(err))

	// the background sweep fires on every outcome
	assert.Len(t, f.trigger.targets, 3)
}

func TestCheckoutWithoutRates(t *testing.T) {
	store := docstoretest.NewSQLStore(t)
	f := newFixture(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	empty, err := rates.NewService(rates.ServiceParams{Store: store, Logger: logg})
	require.NoError(t, err)
	f.svc.rates = empty

	_, err = f.svc.CreateOrUpdateOrder(context.Background(), checkoutInput("chk-4", CartLine{ProductID: "p1", Quantity: 1}))
	assert.Equal(t, pkgerrors.CodeRates, pkgerrors.CodeOf(err))
}

func TestCheckoutResubmitUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	f.put(t, models.CollectionUsers, &models.User{ID: "buyer-1", DefaultCurrency: enums.CurrencyNGN, Wallet: wallet("wallet-1", 500)})

	first, err := f.svc.CreateOrUpdateOrder(context.Background(), checkoutInput("chk-5", CartLine{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	assert.False(t, first.Success)
	assert.Equal(t, "failed", first.Code)
	assert.Equal(t, "Insufficient funds", first.Msg)
	require.Len(t, first.Orders, 1)
	assert.Equal(t, enums.OrderStatusPending, f.order(t, first.Orders[0].ID).Status)

	f.put(t, models.CollectionUsers, &models.User{ID: "buyer-1", DefaultCurrency: enums.CurrencyNGN, Wallet: wallet("wallet-1", 5000)})

	second, err := f.svc.CreateOrUpdateOrder(context.Background(), checkoutInput("chk-5", CartLine{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "paid", second.Code)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, first.Orders[0].ID, second.Orders[0].ID)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)

	third, err := f.svc.CreateOrUpdateOrder(context.Background(), checkoutInput("chk-5", CartLine{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "paid", third.Code)
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(4000)))
}

func TestCommissionLegs(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateOrUpdateOrder(context.Background(), checkoutInput("chk-6", CartLine{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	order := f.order(t, res.Orders[0].ID)

	want := map[enums.CommissionTier]struct {
		brand  string
		amount int64
	}{
		enums.CommissionTierProductBrand:       {"vendor", 100},
		enums.CommissionTierProductParentBrand: {"master", 20},
		enums.CommissionTierOrderBrand:         {"shop", 50},
		enums.CommissionTierOrderParentBrand:   {"region", 30},
	}
	rateSum := decimal.Zero
	legSum := decimal.Zero
	for _, leg := range order.CommissionLegs() {
		c := leg.Commission
		if exp, ok := want[leg.Tier]; ok {
			assert.Equal(t, exp.brand, c.BrandID, leg.Tier)
			assert.True(t, c.Amount.Equal(decimal.NewFromInt(exp.amount)), "%s amount %s", leg.Tier, c.Amount)
			assert.Equal(t, "w-"+exp.brand, c.WalletID)
		} else {
			// master already earns as the product brand's parent
			assert.True(t, c.IsZero(), leg.Tier)
		}
		rateSum = rateSum.Add(c.Rate)
		legSum = legSum.Add(c.Amount)
	}
	assert.True(t, legSum.LessThanOrEqual(order.Amount.Mul(rateSum).Div(decimal.NewFromInt(100))))
	require.NotNil(t, order.SettlementDate)
	assert.WithinDuration(t, f.clock.Now().Add(24*time.Hour), *order.SettlementDate, time.Second)
}

func TestCommissionFallbackStoresMinimalOrder(t *testing.T) {
	f := newFixture(t)
	f.put(t, models.CollectionBrands, &models.Brand{ID: "region", ParentID: "master", OwnerID: "ghost", ShareValue: decimal.NewFromInt(3)})

	res, err := f.svc.CreateOrUpdateOrder(context.Background(), checkoutInput("chk-7", CartLine{ProductID: "p3", Quantity: 3}))
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	order := res.Orders[0]
	assert.Equal(t, 1, order.Quantity)
	assert.True(t, order.Amount.Equal(decimal.NewFromInt(500)))
	for _, leg := range order.CommissionLegs() {
		assert.True(t, leg.Commission.IsZero())
	}
}

func seedOrder(t *testing.T, f fixture, id string, status enums.OrderStatus, productID string) models.Order {
	t.Helper()
	settleAt := f.clock.Now()
	o := models.Order{
		ID: id, ReferenceID: "ref-" + id, Status: status, ProductID: productID, BrandID: "shop",
		UserID: "buyer-1", Amount: decimal.NewFromInt(500), UnitPrice: decimal.NewFromInt(500),
		OrderCurrency: enums.CurrencyNGN, Quantity: 1, Type: enums.ProductTypeCourse,
		SettlementDate: &settleAt,
		Rates:          models.RateTable{"NGN": decimal.NewFromInt(1500), "USD": decimal.NewFromInt(1)},
	}
	f.put(t, models.CollectionOrders, &o)
	return o
}

func TestFulfillOrdersGatesOnStatus(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.router.Register(fulfillment.HandlerFunc(func(context.Context, fulfillment.Request) (fulfillment.Outcome, error) {
		calls++
		return fulfillment.Outcome{Status: enums.OrderStatusProcessing, FulfillID: "m-1"}, nil
	}), enums.ProductTypeCourse)

	var orders []models.Order
	for _, s := range []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessed, enums.OrderStatusCompleted, enums.OrderStatusPaid} {
		orders = append(orders, seedOrder(t, f, "o-"+string(s), s, "p3"))
	}

	report, err := f.svc.FulfillOrders(context.Background(), orders)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 1, report.Fulfilled)
	assert.Equal(t, enums.OrderStatusProcessing, f.order(t, "o-paid").Status)
	assert.Equal(t, enums.OrderStatusCompleted, f.order(t, "o-completed").Status)

	// a second pass finds nothing eligible
	report, err = f.svc.FulfillPaidOrders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
	assert.Equal(t, 1, calls)
}

func TestFulfillReleasesClaimOnFailure(t *testing.T) {
	cases := map[string]fulfillment.HandlerFunc{
		"error": func(context.Context, fulfillment.Request) (fulfillment.Outcome, error) {
			return fulfillment.Outcome{}, errors.New("partner timeout")
		},
		"panic": func(context.Context, fulfillment.Request) (fulfillment.Outcome, error) {
			panic("handler bug")
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.router.Register(handler, enums.ProductTypeCourse)
			order := seedOrder(t, f, "o-1", enums.OrderStatusPaid, "p3")

			report, err := f.svc.FulfillOrders(context.Background(), []models.Order{order})
			require.Error(t, err)
			assert.Equal(t, 1, report.Attempted)

			stored := f.order(t, "o-1")
			assert.False(t, stored.Processing)
			assert.Equal(t, enums.OrderStatusPaid, stored.Status)
		})
	}
}

func TestFulfillInvalidOutcomeRefunds(t *testing.T) {
	f := newFixture(t)
	f.router.Register(fulfillment.HandlerFunc(func(context.Context, fulfillment.Request) (fulfillment.Outcome, error) {
		return fulfillment.Outcome{Status: fulfillment.StatusInvalid}, nil
	}), enums.ProductTypeCourse)
	order := seedOrder(t, f, "o-1", enums.OrderStatusPaid, "p3")

	report, err := f.svc.FulfillOrders(context.Background(), []models.Order{order})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Refunded)
	assert.Equal(t, enums.OrderStatusRefunded, f.order(t, "o-1").Status)
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(5500)))
}

func TestCancelAndRefundIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, "o-1", enums.OrderStatusPaid, "p3")

	res, err := f.svc.Cancel(context.Background(), "buyer-1", order.ID)
	require.NoError(t, err)
	assert.True(t, res.Refunded)
	assert.Equal(t, enums.PaymentStatusCompleted, res.Payment.Status)

	_, err = f.svc.Cancel(context.Background(), "buyer-1", order.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(5500)))

	_, err = f.svc.Cancel(context.Background(), "someone-else", order.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestRefundFailureLeavesOrderCancelled(t *testing.T) {
	f := newFixture(t)
	f.put(t, models.CollectionUsers, &models.User{ID: "buyer-1", DefaultCurrency: enums.CurrencyNGN,
		Wallet: models.UserWallet{ID: "wallet-1", Balance: decimal.Zero, ShareValue: decimal.Zero, Currency: enums.CurrencyUSD}})
	order := seedOrder(t, f, "o-1", enums.OrderStatusPaid, "p3")

	res, err := f.svc.CancelAndRefund(context.Background(), &order)
	require.Error(t, err)
	assert.False(t, res.Refunded)
	assert.Equal(t, enums.OrderStatusCancelled, f.order(t, "o-1").Status)
}

func TestSettleOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateOrUpdateOrder(ctx, checkoutInput("chk-8", CartLine{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	id := res.Orders[0].ID
	require.Equal(t, enums.OrderStatusProcessed, f.order(t, id).Status)

	report, err := f.svc.SettleOrders(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, report.Orders, "not due before the settlement date")

	f.clock.Advance(25 * time.Hour)
	report, err = f.svc.SettleOrders(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 4, report.Legs)

	order := f.order(t, id)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
	assert.True(t, order.MilleCredited)
	assert.Equal(t, "stl-"+id, order.SettlementReference)
	for _, leg := range order.CommissionLegs() {
		if leg.Commission.IsZero() {
			continue
		}
		assert.True(t, leg.Commission.CommissionStatus, leg.Tier)
		assert.Equal(t, enums.GatewayWallet, leg.Commission.Gateway)
	}
	assert.True(t, f.balance(t, "owner-vendor").Equal(decimal.NewFromInt(100)))
	assert.True(t, f.balance(t, "owner-master").Equal(decimal.NewFromInt(20)))
	assert.True(t, f.balance(t, "owner-shop").Equal(decimal.NewFromInt(50)))
	assert.True(t, f.balance(t, "owner-region").Equal(decimal.NewFromInt(30)))
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(4001)))

	// completed orders are out of scope for the next sweep
	report, err = f.svc.SettleOrders(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, report.Orders)
	assert.True(t, f.balance(t, "owner-vendor").Equal(decimal.NewFromInt(100)))
}

func TestSettleSkipsSettledLeg(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, "o-1", enums.OrderStatusProcessed, "p3")
	order.ProductBrandCommission = models.Commission{
		Tier: enums.CommissionTierProductBrand, BrandID: "vendor", Amount: decimal.NewFromInt(50),
		Currency: enums.CurrencyNGN, OwnerUserID: "owner-vendor", WalletID: "w-vendor",
		OwnerCurrency: enums.CurrencyNGN, CommissionStatus: true,
	}
	leg := order.CommissionLegs()[0]

	for i := 0; i < 2; i++ {
		ok, err := f.svc.settle(context.Background(), &order, leg, rates.FromModel(order.Rates))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.True(t, f.balance(t, "owner-vendor").IsZero())
	var all []models.Payment
	require.NoError(t, f.store.FetchMany(context.Background(), models.CollectionPayments, nil, nil, &all))
	assert.Empty(t, all)
}

func TestSettleLargeLegQueuesPayout(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, "o-1", enums.OrderStatusProcessed, "p3")
	order.SettlementReference = "stl-o-1"
	order.ProductBrandCommission = models.Commission{
		Tier: enums.CommissionTierProductBrand, BrandID: "vendor", Amount: decimal.NewFromInt(20000),
		Currency: enums.CurrencyNGN, OwnerUserID: "owner-vendor", WalletID: "w-vendor",
		OwnerCurrency: enums.CurrencyNGN,
		Bank:          models.BankDetails{AccountNumber: "0123456789", AccountName: "Vendor Ltd", BankCode: "058"},
	}
	leg := order.CommissionLegs()[0]

	ok, err := f.svc.settle(context.Background(), &order, leg, rates.FromModel(order.Rates))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, enums.GatewayPaystack, leg.Commission.Gateway)

	var p models.Payment
	require.NoError(t, f.store.FetchOne(context.Background(), models.CollectionPayments, leg.Commission.PaymentID, &p))
	assert.Equal(t, enums.PaymentTypePayout, p.Type)
	assert.Equal(t, enums.PaymentStatusPaid, p.Status)
	assert.True(t, p.Charges.Equal(decimal.NewFromInt(25)))
	assert.True(t, f.balance(t, "owner-vendor").IsZero())

	// a retry after a lost write finds the queued payout instead of queueing another
	leg.Commission.CommissionStatus = false
	ok, err = f.svc.settle(context.Background(), &order, leg, rates.FromModel(order.Rates))
	require.NoError(t, err)
	assert.True(t, ok)
	var all []models.Payment
	require.NoError(t, f.store.FetchMany(context.Background(), models.CollectionPayments, nil, nil, &all))
	assert.Len(t, all, 1)
}

func TestListAndGetByReference(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.CreateOrUpdateOrder(context.Background(), checkoutInput("chk-9",
		CartLine{ProductID: "p1", Quantity: 1}, CartLine{ProductID: "p3", Quantity: 1}))
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)

	list, err := f.svc.List(context.Background(), "buyer-1", "", docstore.Page{Limit: 1, Page: 1})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 1)
	assert.Equal(t, int64(2), list.Meta.Total)

	got, err := f.svc.GetByReference(context.Background(), "buyer-1", "chk-9")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = f.svc.GetByReference(context.Background(), "intruder", "chk-9")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestCheckoutResubmitAbandonsDroppedLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.put(t, models.CollectionUsers, &models.User{ID: "buyer-1", DefaultCurrency: enums.CurrencyNGN, Wallet: wallet("wallet-1", 500)})

	first, err := f.svc.CreateOrUpdateOrder(ctx, checkoutInput("chk-shrink",
		CartLine{ProductID: "p1", Quantity: 1},
		CartLine{ProductID: "p3", Quantity: 2},
	))
	require.NoError(t, err)
	assert.False(t, first.Success)
	require.Len(t, first.Orders, 2)

	f.put(t, models.CollectionUsers, &models.User{ID: "buyer-1", DefaultCurrency: enums.CurrencyNGN, Wallet: wallet("wallet-1", 5000)})

	second, err := f.svc.CreateOrUpdateOrder(ctx, checkoutInput("chk-shrink", CartLine{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "paid", second.Code)
	assert.True(t, second.Payment.Amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(4000)))

	stored, err := f.svc.repo.FindByReference(ctx, "chk-shrink")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, o := range stored {
		switch o.ProductID {
		case "p1":
			assert.Equal(t, enums.OrderStatusProcessed, o.Status)
		case "p3":
			assert.Equal(t, enums.OrderStatusAbandoned, o.Status)
			assert.Empty(t, o.FulfillID)
		}
	}

	third, err := f.svc.CreateOrUpdateOrder(ctx, checkoutInput("chk-shrink", CartLine{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "Order already submitted", third.Msg)
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(4000)))
}

func TestCheckoutResubmitAfterClearedPaymentDoesNotChargeAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := seedOrder(t, f, "o-1", enums.OrderStatusPending, "p1")
	settleAt := f.clock.Now().Add(24 * time.Hour)
	order.Type = enums.ProductTypeDigital
	order.Amount = decimal.NewFromInt(1000)
	order.PaymentID = "pay-1"
	order.SettlementDate = &settleAt
	f.put(t, models.CollectionOrders, &order)
	f.put(t, models.CollectionPayments, &models.Payment{
		ID: "pay-1", ReferenceID: order.ReferenceID, UserID: "buyer-1", WalletID: "wallet-1",
		Amount: decimal.NewFromInt(1000), Currency: enums.CurrencyNGN, Gateway: enums.GatewayWallet,
		TrnxType: enums.TrnxTypePurchase, Type: enums.PaymentTypeDebit, Status: enums.PaymentStatusPaid,
	})

	res, err := f.svc.CreateOrUpdateOrder(ctx, checkoutInput(order.ReferenceID, CartLine{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "Order already submitted", res.Msg)
	assert.Equal(t, "paid", res.Code)
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, enums.OrderStatusProcessed, f.order(t, "o-1").Status)
}

func TestCancelRefusesClaimedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, f, "o-1", enums.OrderStatusPaid, "p3")

	claimed, err := f.store.Lock(ctx, models.CollectionOrders, order.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = f.svc.Cancel(ctx, "buyer-1", order.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.OrderStatusPaid, f.order(t, order.ID).Status)
	assert.True(t, f.balance(t, "buyer-1").Equal(decimal.NewFromInt(5000)))

	require.NoError(t, f.store.Unlock(ctx, models.CollectionOrders, order.ID))
	res, err := f.svc.Cancel(ctx, "buyer-1", order.ID)
	require.NoError(t, err)
	assert.True(t, res.Refunded)
	assert.False(t, f.order(t, order.ID).Processing)
}

func TestFulfillSettlesDueOrderAfterReleasingClaim(t *testing.T) {
	f := newFixture(t)
	var followUps []func()
	f.svc.async = func(fn func()) { followUps = append(followUps, fn) }
	order := seedOrder(t, f, "o-1", enums.OrderStatusPaid, "p1")

	report, err := f.svc.FulfillOrders(context.Background(), []models.Order{order})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fulfilled)
	require.Len(t, followUps, 1)

	stored := f.order(t, "o-1")
	assert.Equal(t, enums.OrderStatusProcessed, stored.Status)
	assert.False(t, stored.Processing)

	followUps[0]()
	assert.Equal(t, enums.OrderStatusCompleted, f.order(t, "o-1").Status)
}
