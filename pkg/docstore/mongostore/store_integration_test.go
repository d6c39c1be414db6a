//go:build integration

package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// Run with: BRANDPAY_TEST_MONGO_URI=mongodb://localhost:27017 go test -tags integration ./pkg/docstore/mongostore/
func connectTestStore(t *testing.T, clock docstore.Clock) *Store {
	t.Helper()
	uri := os.Getenv("BRANDPAY_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("BRANDPAY_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	store, err := Connect(ctx, Options{
		URI:      uri,
		Database: fmt.Sprintf("brandpay_test_%d", time.Now().UnixNano()),
		Source:   "integration",
		LockTTL:  time.Minute,
		Clock:    clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.db.Drop(ctx)
		_ = store.Close(ctx)
	})
	return store
}

func seedOrder(t *testing.T, store *Store, id string, status enums.OrderStatus) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(), models.CollectionOrders, &models.Order{
		ID:          id,
		ReferenceID: "ref-" + id,
		Status:      status,
		Amount:      decimal.NewFromInt(500),
	}, true))
}

func TestIntegrationLockIsExclusiveUntilReleasedOrStale(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	store := connectTestStore(t, func() time.Time { return now })
	ctx := context.Background()
	seedOrder(t, store, "o-1", enums.OrderStatusPaid)

	ok, err := store.Lock(ctx, models.CollectionOrders, "o-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Lock(ctx, models.CollectionOrders, "o-1")
	require.NoError(t, err)
	assert.False(t, ok, "held claim must not be taken twice")

	require.NoError(t, store.Unlock(ctx, models.CollectionOrders, "o-1"))
	var order models.Order
	require.NoError(t, store.FetchOne(ctx, models.CollectionOrders, "o-1", &order))
	assert.False(t, order.Processing)
	assert.Nil(t, order.ProcessingAt)

	ok, err = store.Lock(ctx, models.CollectionOrders, "o-1")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = store.Lock(ctx, models.CollectionOrders, "o-1")
	require.NoError(t, err)
	assert.True(t, ok, "claim older than the ttl is taken over")

	assert.ErrorIs(t, store.Unlock(ctx, models.CollectionOrders, "missing"), docstore.ErrNotFound)
}

func TestIntegrationUpdateManyOnlyMatchesExpectedStatus(t *testing.T) {
	store := connectTestStore(t, nil)
	ctx := context.Background()
	seedOrder(t, store, "o-1", enums.OrderStatusPaid)

	cas := docstore.Where(docstore.Eq("id", "o-1"), docstore.In("status", []enums.OrderStatus{enums.OrderStatusPaid}))
	n, err := store.UpdateMany(ctx, models.CollectionOrders, cas, map[string]any{"status": enums.OrderStatusProcessed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.UpdateMany(ctx, models.CollectionOrders, cas, map[string]any{"status": enums.OrderStatusCancelled})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "second writer loses the compare-and-swap")

	var order models.Order
	require.NoError(t, store.FetchOne(ctx, models.CollectionOrders, "o-1", &order))
	assert.Equal(t, enums.OrderStatusProcessed, order.Status)
}

func TestIntegrationBulkUpsertReportsEachDocument(t *testing.T) {
	store := connectTestStore(t, nil)
	ctx := context.Background()

	result := store.BulkUpsert(ctx, models.CollectionOrders, []models.Document{
		&models.Order{ID: "o-1", Status: enums.OrderStatusPending},
		&models.Order{},
		&models.Order{ID: "o-2", Status: enums.OrderStatusPending},
	})
	assert.ElementsMatch(t, []string{"o-1", "o-2"}, result.Saved)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed, "#1")
}
