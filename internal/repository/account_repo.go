package repository

import (
	"context"

	"github.com/mototrade/trade-service/internal/domain/entity"
)

type AccountRepository interface {
	GetByID(ctx context.Context, accountID string) (*entity.Account, error)
	// AppendSoldItem adds the listing id to the seller's sold-items set.
	// Idempotent: appending an id that is already present is a no-op.
	AppendSoldItem(ctx context.Context, sellerID, listingID string) error
}
