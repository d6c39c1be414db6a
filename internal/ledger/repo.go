package ledger

import (
	"context"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
)

// Repository manages persistence for journal rows.
type Repository interface {
	Create(ctx context.Context, entry *models.Transaction) error
	ListByWallet(ctx context.Context, walletID string) ([]models.Transaction, error)
	ListByReference(ctx context.Context, reference string) ([]models.Transaction, error)
}

type repository struct {
	store docstore.Store
}

// NewRepository returns a journal repository on the transactions collection.
func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) Create(ctx context.Context, entry *models.Transaction) error {
	return r.store.Upsert(ctx, models.CollectionTransactions, entry, true)
}

func (r *repository) ListByWallet(ctx context.Context, walletID string) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := r.store.FetchMany(ctx, models.CollectionTransactions,
		docstore.Where(docstore.Eq("wallet_id", walletID)),
		[]docstore.Sort{{Field: "created_at"}},
		&entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByReference(ctx context.Context, reference string) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := r.store.FetchMany(ctx, models.CollectionTransactions,
		docstore.Where(docstore.Eq("reference", reference)),
		[]docstore.Sort{{Field: "created_at"}},
		&entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
