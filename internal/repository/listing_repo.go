package repository

import (
	"context"

	"github.com/mototrade/trade-service/internal/domain/entity"
)

type CreateListingParams struct {
	OwnerID   string
	Brand     string
	Model     string
	Trim      string
	Year      int
	Mileage   int
	Price     float64
	PhotoURLs []string
}

type UpdateListingParams struct {
	ListingID string
	Brand     string
	Model     string
	Trim      string
	Year      int
	Mileage   int
	Price     float64
}

type ListingRepository interface {
	Create(ctx context.Context, params CreateListingParams) (string, error)
	GetByID(ctx context.Context, listingID string) (*entity.Listing, error)
	Update(ctx context.Context, params UpdateListingParams) error
	AddPhotoURL(ctx context.Context, listingID, url string) error
	// MarkSold flips the sold flag under the guard "exists and not already
	// sold". A guard failure is reported as ErrOptimisticLock, a missing
	// listing as ErrNotFound.
	MarkSold(ctx context.Context, listingID string) error
	Delete(ctx context.Context, listingID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]entity.Listing, error)
}
