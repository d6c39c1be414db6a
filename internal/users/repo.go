package users

import (
	"context"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
)

// Repository reads user documents.
type Repository struct {
	store docstore.Store
}

// NewRepository binds the users repo to a document store.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// FindByID loads a user by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.store.FetchOne(ctx, models.CollectionUsers, id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads the users matching ids. Missing ids are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	if len(ids) == 0 {
		return out, nil
	}
	err := r.store.FetchMany(ctx, models.CollectionUsers, docstore.Where(docstore.In("id", ids)), nil, &out)
	return out, err
}
