// Package brands resolves tenant brands and their ownership hierarchy.
package brands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

// MaxDepth bounds the parent walk from any brand to its master.
const MaxDepth = 8

var (
	ErrCycle    = errors.New("brand hierarchy contains a cycle")
	ErrTooDeep  = errors.New("brand hierarchy exceeds maximum depth")
	errNotFound = "brand not found"
)

type brandRepository interface {
	FindByID(ctx context.Context, id string) (*models.Brand, error)
}

// Parents is the commission chain above a brand. Parent is nil for a root brand and
// Master is the root ancestor, which is the brand itself when it has no parent.
type Parents struct {
	Parent *models.Brand
	Master *models.Brand
}

// Service exposes brand lookups.
type Service interface {
	FetchBrand(ctx context.Context, id string) (*models.Brand, error)
	Parents(ctx context.Context, brandID string) (Parents, error)
}

type service struct {
	repo brandRepository
}

// NewService builds a brand service.
func NewService(repo brandRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("brand repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) FetchBrand(ctx context.Context, id string) (*models.Brand, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSiteInfo, "brand id is required")
	}
	brand, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, errNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load brand")
	}
	return brand, nil
}

// Parents walks parent_id links from brandID up to the root.
func (s *service) Parents(ctx context.Context, brandID string) (Parents, error) {
	brand, err := s.FetchBrand(ctx, brandID)
	if err != nil {
		return Parents{}, err
	}

	seen := map[string]struct{}{brand.ID: {}}
	chain := []*models.Brand{brand}
	current := brand
	for current.ParentID != "" {
		if len(chain) > MaxDepth {
			return Parents{}, pkgerrors.Wrap(pkgerrors.CodeSiteInfo, ErrTooDeep, brandID)
		}
		if _, ok := seen[current.ParentID]; ok {
			return Parents{}, pkgerrors.Wrap(pkgerrors.CodeSiteInfo, ErrCycle, current.ParentID)
		}
		next, err := s.FetchBrand(ctx, current.ParentID)
		if err != nil {
			return Parents{}, err
		}
		seen[next.ID] = struct{}{}
		chain = append(chain, next)
		current = next
	}

	out := Parents{Master: chain[len(chain)-1]}
	if len(chain) > 1 {
		out.Parent = chain[1]
	}
	return out, nil
}
