// Package orders prices checkouts, drives fulfillment and settles brand commissions.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	"github.com/angelmondragon/brandpay-backend/pkg/metrics"
)

const (
	triggerAlways          = "always"
	defaultSettlementDelay = 24 * time.Hour
)

// Service is the order engine.
type Service interface {
	CreateOrUpdateOrder(ctx context.Context, in CheckoutInput) (*CheckoutResult, error)
	FulfillOrders(ctx context.Context, orders []models.Order) (FulfillReport, error)
	FulfillPaidOrders(ctx context.Context) (FulfillReport, error)
	CancelAndRefund(ctx context.Context, order *models.Order) (RefundResult, error)
	Cancel(ctx context.Context, userID, orderID string) (RefundResult, error)
	ConfirmPayment(ctx context.Context, reference string) ([]models.Order, error)
	ReconcileCharges(ctx context.Context) (int, error)
	SettleOrders(ctx context.Context, orderID string) (SettleReport, error)
	GetByReference(ctx context.Context, userID, reference string) ([]models.Order, error)
	List(ctx context.Context, userID string, status enums.OrderStatus, page docstore.Page) (*OrderList, error)
}

// ServiceParams wire the order engine.
type ServiceParams struct {
	Repo            *Repository
	Products        productCatalog
	Brands          brandDirectory
	Users           userDirectory
	Rates           rateSnapshotter
	Payments        paymentProcessor
	Fulfillment     fulfiller
	Trigger         Trigger
	Logger          *logger.Logger
	Metrics         *metrics.SettlementMetrics
	Clock           docstore.Clock
	SettlementDelay time.Duration
	WalletThreshold decimal.Decimal
	MilleRate       decimal.Decimal
	PayoutGateway   enums.Gateway
}

type service struct {
	repo        *Repository
	products    productCatalog
	brands      brandDirectory
	users       userDirectory
	rates       rateSnapshotter
	payments    paymentProcessor
	fulfillment fulfiller
	trigger     Trigger
	logg        *logger.Logger
	metrics     *metrics.SettlementMetrics
	now         docstore.Clock
	delay       time.Duration
	threshold   decimal.Decimal
	milleRate   decimal.Decimal
	payoutVia   enums.Gateway
	// async runs detached follow-up work such as settling a freshly processed order.
	async func(fn func())
}

// NewService builds the order engine.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product catalog required")
	case params.Brands == nil:
		return nil, fmt.Errorf("brand directory required")
	case params.Users == nil:
		return nil, fmt.Errorf("user directory required")
	case params.Rates == nil:
		return nil, fmt.Errorf("rate service required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payment processor required")
	case params.Fulfillment == nil:
		return nil, fmt.Errorf("fulfillment router required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}

	svc := &service{
		repo:        params.Repo,
		products:    params.Products,
		brands:      params.Brands,
		users:       params.Users,
		rates:       params.Rates,
		payments:    params.Payments,
		fulfillment: params.Fulfillment,
		trigger:     params.Trigger,
		logg:        params.Logger,
		metrics:     params.Metrics,
		now:         params.Clock,
		delay:       params.SettlementDelay,
		threshold:   params.WalletThreshold,
		milleRate:   params.MilleRate,
		payoutVia:   params.PayoutGateway,
		async:       func(fn func()) { go fn() },
	}
	if svc.now == nil {
		svc.now = docstore.UTCNow
	}
	if svc.delay <= 0 {
		svc.delay = defaultSettlementDelay
	}
	if !svc.threshold.IsPositive() {
		svc.threshold = decimal.NewFromInt(1000)
	}
	if svc.payoutVia == "" {
		svc.payoutVia = enums.GatewayPaystack
	}
	return svc, nil
}

// fire starts a background sweep. It never blocks or fails the caller.
func (s *service) fire(ctx context.Context, target string) {
	if s.trigger == nil {
		return
	}
	s.trigger.Fire(context.WithoutCancel(ctx), target)
}

func (s *service) GetByReference(ctx context.Context, userID, reference string) ([]models.Order, error) {
	orders, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	if len(orders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if userID != "" && orders[0].UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return orders, nil
}

func (s *service) List(ctx context.Context, userID string, status enums.OrderStatus, page docstore.Page) (*OrderList, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if status != "" && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "invalid order status")
	}
	orders, meta, err := s.repo.ListForUser(ctx, userID, status, page.Normalize())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderList{Orders: orders, Meta: meta}, nil
}

func (s *service) loadOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
