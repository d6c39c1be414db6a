// Package rates keeps the exchange-rate table and converts amounts between currencies.
package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	"github.com/angelmondragon/brandpay-backend/pkg/redis"
)

const (
	defaultCacheTTL = 10 * time.Minute
	sourceFX        = "exchangeratesapi"
	sourceCrypto    = "spot"
)

type cacheStore interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

type rateSource interface {
	Latest(ctx context.Context, base string) (map[string]decimal.Decimal, error)
	SpotPrice(ctx context.Context, symbol, currency string) (decimal.Decimal, error)
}

// ServiceParams configure the rate service.
type ServiceParams struct {
	Store         docstore.Store
	Cache         cacheStore
	Source        rateSource
	CryptoSymbols []string
	CacheTTL      time.Duration
	Logger        *logger.Logger
}

// Service serves rate snapshots and refreshes them from the providers.
type Service struct {
	store         docstore.Store
	cache         cacheStore
	source        rateSource
	cryptoSymbols []string
	cacheTTL      time.Duration
	logg          *logger.Logger
}

// NewService wires the rate service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		store:         params.Store,
		cache:         params.Cache,
		source:        params.Source,
		cryptoSymbols: params.CryptoSymbols,
		cacheTTL:      ttl,
		logg:          params.Logger,
	}, nil
}

// Snapshot returns the current rate table, served from cache when warm.
func (s *Service) Snapshot(ctx context.Context) (Table, error) {
	key := s.cacheKey()
	if s.cache != nil {
		var cached Table
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && len(cached) > 0 {
			return cached, nil
		}
		if err != nil && !errors.Is(err, redis.ErrCacheMiss) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "rates cache read failed")
		}
	}

	var rows []models.CurrencyRate
	if err := s.store.FetchMany(ctx, models.CollectionCurrencies, nil, nil, &rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRates, err, "load exchange rates")
	}
	table := make(Table, len(rows))
	for _, row := range rows {
		if row.Rate.IsPositive() {
			table[strings.ToUpper(row.Code)] = row.Rate
		}
	}
	if len(table) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeRates, "exchange rates unavailable")
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, table, s.cacheTTL); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "rates cache write failed")
		}
	}
	return table, nil
}

// Convert converts amount using the current snapshot.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to enums.Currency) (decimal.Decimal, error) {
	if from.Equal(to) {
		return amount, nil
	}
	table, err := s.Snapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return table.Convert(amount, from, to)
}

// UpdateExchangeRates pulls fiat and crypto rates and persists them into the currencies collection.
// Crypto failures are collected and do not discard fiat rates.
func (s *Service) UpdateExchangeRates(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "rate source not configured")
	}
	fiat, err := s.source.Latest(ctx, string(BaseCurrency))
	if err != nil {
		return 0, err
	}

	docs := make([]models.Document, 0, len(fiat)+len(s.cryptoSymbols))
	for code, rate := range fiat {
		if !rate.IsPositive() {
			continue
		}
		code = strings.ToUpper(code)
		docs = append(docs, &models.CurrencyRate{
			ID:     code,
			Code:   code,
			Rate:   rate,
			Symbol: enums.Currency(code).Symbol(),
			Source: sourceFX,
		})
	}

	var errs error
	for _, symbol := range s.cryptoSymbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		price, err := s.source.SpotPrice(ctx, symbol, string(BaseCurrency))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		docs = append(docs, &models.CurrencyRate{
			ID:     symbol,
			Code:   symbol,
			Rate:   decimal.NewFromInt(1).DivRound(price, 16),
			Symbol: symbol,
			Crypto: true,
			Source: sourceCrypto,
		})
	}

	result := s.store.BulkUpsert(docstore.WithSource(ctx, "rates"), models.CollectionCurrencies, docs)
	for id, failure := range result.Failed {
		errs = multierr.Append(errs, fmt.Errorf("save rate %s: %w", id, failure))
	}
	if err := result.Err(); err != nil {
		return 0, multierr.Append(errs, err)
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, s.cacheKey()); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "rates cache invalidation failed")
		}
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"saved": len(result.Saved), "failed": len(result.Failed)})
	s.logg.Info(logCtx, "exchange rates refreshed")
	return len(result.Saved), errs
}

func (s *Service) cacheKey() string {
	if s.cache == nil {
		return ""
	}
	return s.cache.CacheKey("rates", "snapshot")
}
