// Package app assembles the settlement engine from configuration so every binary
// shares one service graph.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/brandpay-backend/internal/brands"
	"github.com/angelmondragon/brandpay-backend/internal/cron"
	"github.com/angelmondragon/brandpay-backend/internal/fulfillment"
	"github.com/angelmondragon/brandpay-backend/internal/ledger"
	"github.com/angelmondragon/brandpay-backend/internal/orders"
	"github.com/angelmondragon/brandpay-backend/internal/payments"
	"github.com/angelmondragon/brandpay-backend/internal/payouts"
	product "github.com/angelmondragon/brandpay-backend/internal/products"
	"github.com/angelmondragon/brandpay-backend/internal/rates"
	"github.com/angelmondragon/brandpay-backend/internal/users"
	"github.com/angelmondragon/brandpay-backend/internal/wallets"
	"github.com/angelmondragon/brandpay-backend/pkg/config"
	"github.com/angelmondragon/brandpay-backend/pkg/db"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore/mongostore"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore/sqlstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	"github.com/angelmondragon/brandpay-backend/pkg/flutterwave"
	"github.com/angelmondragon/brandpay-backend/pkg/fxrates"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	"github.com/angelmondragon/brandpay-backend/pkg/metrics"
	"github.com/angelmondragon/brandpay-backend/pkg/migrate"
	"github.com/angelmondragon/brandpay-backend/pkg/paystack"
	"github.com/angelmondragon/brandpay-backend/pkg/redis"
)

// Store is a document store that can be probed.
type Store interface {
	docstore.Store
	Ping(ctx context.Context) error
}

// Params configure Build.
type Params struct {
	Config *config.Config
	Logger *logger.Logger
	Redis  *redis.Client
	// Registry receives the sweep jobs. A fresh registry is created when nil.
	Registry *cron.Registry
	// Trigger starts sweeps after checkout and payment events. Nil disables them.
	Trigger orders.Trigger
	Metrics prometheus.Registerer
}

// App holds the wired services.
type App struct {
	Store    Store
	Orders   orders.Service
	Payments *payments.Service
	// Payouts is nil when no Paystack secret is configured.
	Payouts  *payouts.Service
	Rates    *rates.Service
	Registry *cron.Registry

	closers []func(context.Context) error
}

// Build opens the document store and wires every service on top of it. Callers
// must Close the returned App.
func Build(ctx context.Context, params Params) (*App, error) {
	cfg, logg := params.Config, params.Logger
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	a := &App{Registry: params.Registry}
	if a.Registry == nil {
		a.Registry = cron.NewRegistry()
	}

	store, err := a.openStore(ctx, cfg, logg)
	if err != nil {
		return nil, multierr.Append(err, a.Close(context.WithoutCancel(ctx)))
	}
	a.Store = store

	if err := a.wire(ctx, params); err != nil {
		return nil, multierr.Append(err, a.Close(context.WithoutCancel(ctx)))
	}
	return a, nil
}

// Close releases the store connections.
func (a *App) Close(ctx context.Context) error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i](ctx))
	}
	a.closers = nil
	return err
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Store, error) {
	source := cfg.Service.Kind
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		store, err := mongostore.Connect(ctx, mongostore.Options{
			URI:          cfg.Store.MongoURI,
			Database:     cfg.Store.MongoDatabase,
			Source:       source,
			LockTTL:      cfg.Store.LockTTL,
			QueryTimeout: cfg.Store.QueryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting mongo store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		logg.Info(logg.WithField(ctx, "database", cfg.Store.MongoDatabase), "mongo document store ready")
		return store, nil
	default:
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrapping database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return dbClient.Close() })
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			return nil, fmt.Errorf("running dev migrations: %w", err)
		}
		store, err := sqlstore.New(dbClient.DB(), sqlstore.Options{Source: source, LockTTL: cfg.Store.LockTTL})
		if err != nil {
			return nil, fmt.Errorf("building sql store: %w", err)
		}
		return store, nil
	}
}

func (a *App) wire(ctx context.Context, params Params) error {
	cfg, logg := params.Config, params.Logger
	settlementMetrics := metrics.NewSettlementMetrics(params.Metrics)

	var (
		paystackClient    *paystack.Client
		flutterwaveClient *flutterwave.Client
		err               error
	)
	if strings.TrimSpace(cfg.Paystack.SecretKey) != "" {
		paystackClient, err = paystack.NewClient(cfg.Paystack.SecretKey,
			paystack.WithBaseURL(cfg.Paystack.BaseURL),
			paystack.WithTimeout(cfg.Paystack.Timeout),
		)
		if err != nil {
			return fmt.Errorf("creating paystack client: %w", err)
		}
	} else {
		logg.Warn(ctx, "paystack secret not configured; payouts and charge verification disabled")
	}
	if strings.TrimSpace(cfg.Flutterwave.SecretKey) != "" {
		flutterwaveClient, err = flutterwave.NewClient(cfg.Flutterwave.SecretKey,
			flutterwave.WithBaseURL(cfg.Flutterwave.BaseURL),
			flutterwave.WithTimeout(cfg.Flutterwave.Timeout),
		)
		if err != nil {
			return fmt.Errorf("creating flutterwave client: %w", err)
		}
	}

	rateParams := rates.ServiceParams{
		Store:         a.Store,
		CryptoSymbols: cfg.Rates.CryptoSymbols,
		CacheTTL:      cfg.Rates.CacheTTL,
		Logger:        logg,
	}
	if params.Redis != nil {
		rateParams.Cache = params.Redis
	}
	if strings.TrimSpace(cfg.Rates.APIKey) != "" {
		source, err := fxrates.NewClient(cfg.Rates.APIKey,
			fxrates.WithFXBaseURL(cfg.Rates.FXBaseURL),
			fxrates.WithCryptoBaseURL(cfg.Rates.CryptoBaseURL),
		)
		if err != nil {
			return fmt.Errorf("creating rate source: %w", err)
		}
		rateParams.Source = source
	}
	if a.Rates, err = rates.NewService(rateParams); err != nil {
		return fmt.Errorf("creating rate service: %w", err)
	}

	journal, err := ledger.NewService(ledger.NewRepository(a.Store))
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}
	walletSvc, err := wallets.NewService(wallets.ServiceParams{
		Store:   a.Store,
		Ledger:  journal,
		Logger:  logg,
		Metrics: settlementMetrics,
	})
	if err != nil {
		return fmt.Errorf("creating wallet service: %w", err)
	}

	payoutGateway, err := enums.ParseGateway(cfg.Settlement.PayoutGateway)
	if err != nil {
		return fmt.Errorf("parsing payout gateway: %w", err)
	}
	paymentParams := payments.ServiceParams{
		Store:         a.Store,
		Wallets:       walletSvc,
		PayoutGateway: payoutGateway,
		Logger:        logg,
	}
	if paystackClient != nil {
		paymentParams.Paystack = paystackClient
	}
	if flutterwaveClient != nil {
		paymentParams.Flutterwave = flutterwaveClient
	}
	if a.Payments, err = payments.NewService(paymentParams); err != nil {
		return fmt.Errorf("creating payment service: %w", err)
	}

	userSvc, err := users.NewService(users.NewRepository(a.Store))
	if err != nil {
		return fmt.Errorf("creating user service: %w", err)
	}
	brandSvc, err := brands.NewService(brands.NewRepository(a.Store))
	if err != nil {
		return fmt.Errorf("creating brand service: %w", err)
	}
	productSvc, err := product.NewService(product.NewRepository(a.Store))
	if err != nil {
		return fmt.Errorf("creating product service: %w", err)
	}

	var partner fulfillment.Handler
	if strings.TrimSpace(cfg.Partner.BaseURL) != "" {
		handler, err := fulfillment.NewPartnerHandler(cfg.Partner.BaseURL, cfg.Partner.APIKey,
			fulfillment.WithPartnerTimeout(cfg.Partner.Timeout),
		)
		if err != nil {
			return fmt.Errorf("creating partner handler: %w", err)
		}
		partner = handler
	}

	a.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:            orders.NewRepository(a.Store),
		Products:        productSvc,
		Brands:          brandSvc,
		Users:           userSvc,
		Rates:           a.Rates,
		Payments:        a.Payments,
		Fulfillment:     fulfillment.NewDefaultRouter(partner),
		Trigger:         params.Trigger,
		Logger:          logg,
		Metrics:         settlementMetrics,
		SettlementDelay: cfg.Settlement.Delay,
		WalletThreshold: cfg.Settlement.Threshold(),
		MilleRate:       cfg.Settlement.MilleRate(),
		PayoutGateway:   payoutGateway,
	})
	if err != nil {
		return fmt.Errorf("creating order service: %w", err)
	}

	jobs := cron.JobsParams{Logger: logg, Orders: a.Orders, Rates: a.Rates}
	if paystackClient != nil {
		payoutParams := payouts.ServiceParams{
			Store:     a.Store,
			Paystack:  paystackClient,
			Logger:    logg,
			Metrics:   settlementMetrics,
			BatchSize: cfg.Settlement.BatchSize,
		}
		if flutterwaveClient != nil {
			payoutParams.Flutterwave = flutterwaveClient
		}
		if a.Payouts, err = payouts.NewService(payoutParams); err != nil {
			return fmt.Errorf("creating payout service: %w", err)
		}
		jobs.Payouts = a.Payouts
	}
	if err := cron.RegisterJobs(a.Registry, jobs); err != nil {
		return fmt.Errorf("registering sweep jobs: %w", err)
	}
	return nil
}
