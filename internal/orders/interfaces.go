package orders

import (
	"context"

	"github.com/angelmondragon/brandpay-backend/internal/brands"
	"github.com/angelmondragon/brandpay-backend/internal/fulfillment"
	"github.com/angelmondragon/brandpay-backend/internal/payments"
	"github.com/angelmondragon/brandpay-backend/internal/rates"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
)

type productCatalog interface {
	FetchProductByID(ctx context.Context, id string) (*models.Product, error)
	ModProduct(product models.Product, brand *models.Brand) models.Product
}

type brandDirectory interface {
	FetchBrand(ctx context.Context, id string) (*models.Brand, error)
	Parents(ctx context.Context, brandID string) (brands.Parents, error)
}

type userDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type rateSnapshotter interface {
	Snapshot(ctx context.Context) (rates.Table, error)
}

type paymentProcessor interface {
	Process(ctx context.Context, in payments.Input) (payments.Result, error)
	Get(ctx context.Context, id string) (*models.Payment, error)
	ByReference(ctx context.Context, reference string) ([]models.Payment, error)
	VerifyCharge(ctx context.Context, reference string) ([]models.Payment, error)
	PendingCharges(ctx context.Context) ([]models.Payment, error)
}

type fulfiller interface {
	Fulfill(ctx context.Context, req fulfillment.Request) (fulfillment.Outcome, error)
}

// Trigger starts a background sweep without waiting for it.
type Trigger interface {
	Fire(ctx context.Context, target string)
}
