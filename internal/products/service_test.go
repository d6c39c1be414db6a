package product

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore/docstoretest"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

func markup(pct int64) models.PriceRule {
	return models.PriceRule{
		AdjustmentType: enums.AdjustmentTypePercentage,
		Direction:      enums.AdjustmentDirectionIncrease,
		Value:          decimal.NewFromInt(pct),
	}
}

func TestFetchProductByID(t *testing.T) {
	store := docstoretest.NewSQLStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, models.CollectionProducts, &models.Product{
		ID: "p1", BrandID: "b1", Type: enums.ProductTypeData, Price: decimal.NewFromInt(1000),
		Currency: enums.CurrencyNGN, Active: true,
	}, true))
	require.NoError(t, store.Upsert(ctx, models.CollectionProducts, &models.Product{
		ID: "p2", BrandID: "b1", Type: enums.ProductTypeData, Price: decimal.NewFromInt(1000),
		Currency: enums.CurrencyNGN,
	}, true))

	svc, err := NewService(NewRepository(store))
	require.NoError(t, err)

	p, err := svc.FetchProductByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(1000)))

	_, err = svc.FetchProductByID(ctx, "p2")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = svc.FetchProductByID(ctx, "nope")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestModProductLayersSellingBrandRules(t *testing.T) {
	svc, err := NewService(NewRepository(docstoretest.NewSQLStore(t)))
	require.NoError(t, err)

	base := models.Product{ID: "p1", BrandID: "owner", PriceRules: models.PriceRules{markup(10)}}

	resold := svc.ModProduct(base, &models.Brand{ID: "reseller", PriceRules: models.PriceRules{markup(5)}})
	require.Len(t, resold.PriceRules, 2)
	assert.True(t, resold.PriceRules[1].Value.Equal(decimal.NewFromInt(5)))
	assert.Len(t, base.PriceRules, 1)

	own := svc.ModProduct(base, &models.Brand{ID: "owner", PriceRules: models.PriceRules{markup(5)}})
	assert.Len(t, own.PriceRules, 1)

	assert.Len(t, svc.ModProduct(base, nil).PriceRules, 1)
}
