package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// Repository persists order documents.
type Repository struct {
	store docstore.Store
}

// NewRepository binds the orders repo to a document store.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// SaveAll upserts orders, dropping the ones that fail.
func (r *Repository) SaveAll(ctx context.Context, orders []models.Order) docstore.BulkResult {
	docs := make([]models.Document, 0, len(orders))
	for i := range orders {
		docs = append(docs, &orders[i])
	}
	return r.store.BulkUpsert(ctx, models.CollectionOrders, docs)
}

// FindByID loads one order.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.store.FetchOne(ctx, models.CollectionOrders, id, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByReference returns every line of a checkout in creation order.
func (r *Repository) FindByReference(ctx context.Context, reference string) ([]models.Order, error) {
	var out []models.Order
	err := r.store.FetchMany(ctx, models.CollectionOrders,
		docstore.Where(docstore.Eq("reference_id", reference)),
		[]docstore.Sort{{Field: "created_at"}, {Field: "id"}}, &out)
	return out, err
}

// ListForUser pages through a buyer's orders, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID string, status enums.OrderStatus, page docstore.Page) ([]models.Order, docstore.Meta, error) {
	filter := docstore.Where(docstore.Eq("user_id", userID))
	if status != "" {
		filter = append(filter, docstore.Eq("status", string(status)))
	}
	var out []models.Order
	meta, err := r.store.FetchPaginated(ctx, models.CollectionOrders, filter, page,
		[]docstore.Sort{{Field: "created_at", Desc: true}}, &out)
	return out, meta, err
}

// FindFulfillable returns paid orders with no fulfillment attempt on record.
func (r *Repository) FindFulfillable(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := r.store.FetchMany(ctx, models.CollectionOrders,
		docstore.Where(
			docstore.Eq("status", string(enums.OrderStatusPaid)),
			docstore.Eq("fulfill_id", ""),
			docstore.Ne("processing", true),
		), []docstore.Sort{{Field: "created_at"}}, &out)
	return out, err
}

// FindDueForSettlement returns processed orders whose settlement date has passed.
// A non-empty id narrows the sweep to that order.
func (r *Repository) FindDueForSettlement(ctx context.Context, now time.Time, id string) ([]models.Order, error) {
	filter := docstore.Where(
		docstore.Eq("status", string(enums.OrderStatusProcessed)),
		docstore.Lte("settlement_date", now),
	)
	if id != "" {
		filter = append(filter, docstore.Eq("id", id))
	}
	var out []models.Order
	err := r.store.FetchMany(ctx, models.CollectionOrders, filter, []docstore.Sort{{Field: "settlement_date"}}, &out)
	return out, err
}

// Transition writes fields only while the order is still in one of the from statuses.
// It reports whether the order was updated.
func (r *Repository) Transition(ctx context.Context, id string, from []enums.OrderStatus, fields map[string]any) (bool, error) {
	statuses := make([]string, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}
	n, err := r.store.UpdateMany(ctx, models.CollectionOrders,
		docstore.Where(docstore.Eq("id", id), docstore.In("status", statuses)), fields)
	return n > 0, err
}

// MarkReferencePaid moves a checkout's pending lines to paid.
func (r *Repository) MarkReferencePaid(ctx context.Context, reference string) (int64, error) {
	return r.store.UpdateMany(ctx, models.CollectionOrders,
		docstore.Where(
			docstore.Eq("reference_id", reference),
			docstore.Eq("status", string(enums.OrderStatusPending)),
		), map[string]any{"status": string(enums.OrderStatusPaid)})
}

// SetFields updates fields on one order regardless of status.
func (r *Repository) SetFields(ctx context.Context, id string, fields map[string]any) error {
	n, err := r.store.UpdateMany(ctx, models.CollectionOrders, docstore.Where(docstore.Eq("id", id)), fields)
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Lock claims the order's processing flag.
func (r *Repository) Lock(ctx context.Context, id string) (bool, error) {
	return r.store.Lock(ctx, models.CollectionOrders, id)
}

// Unlock clears the order's processing flag.
func (r *Repository) Unlock(ctx context.Context, id string) error {
	return r.store.Unlock(ctx, models.CollectionOrders, id)
}
