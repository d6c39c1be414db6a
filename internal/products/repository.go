package product

import (
	"context"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
)

// Repository reads catalog documents.
type Repository struct {
	store docstore.Store
}

// NewRepository binds the product repo to a document store.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// FindByID loads a product by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.store.FetchOne(ctx, models.CollectionProducts, id, &product); err != nil {
		return nil, err
	}
	return &product, nil
}
