// Package product resolves catalog entries and the price a selling brand charges for them.
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

type productRepository interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
}

// Service exposes catalog lookups.
type Service interface {
	FetchProductByID(ctx context.Context, id string) (*models.Product, error)
	ModProduct(product models.Product, brand *models.Brand) models.Product
}

type service struct {
	repo productRepository
}

// NewService builds a product service.
func NewService(repo productRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

// FetchProductByID returns active products only.
func (s *service) FetchProductByID(ctx context.Context, id string) (*models.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingFields, "product id is required")
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !p.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not available")
	}
	return p, nil
}

// ModProduct returns the product as sold by brand: the product's own rules followed
// by the selling brand's rules. The stored product is never mutated.
func (s *service) ModProduct(p models.Product, brand *models.Brand) models.Product {
	rules := make(models.PriceRules, 0, len(p.PriceRules))
	rules = append(rules, p.PriceRules...)
	if brand != nil && brand.ID != p.BrandID {
		rules = append(rules, brand.PriceRules...)
	}
	p.PriceRules = rules
	return p
}
