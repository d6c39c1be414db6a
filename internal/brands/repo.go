package brands

import (
	"context"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
)

// Repository reads brand documents.
type Repository struct {
	store docstore.Store
}

// NewRepository binds the brands repo to a document store.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// FindByID loads a brand by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Brand, error) {
	var brand models.Brand
	if err := r.store.FetchOne(ctx, models.CollectionBrands, id, &brand); err != nil {
		return nil, err
	}
	return &brand, nil
}
