package service

import (
	"context"
	"errors"
	"fmt"

	s3storage "github.com/mototrade/trade-service/internal/adapter/storage/s3"
	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/repository"
)

type CreateListingInput struct {
	Brand   string
	Model   string
	Trim    string
	Year    int
	Mileage int
	Price   float64
}

// ListingService is the owner-facing CRUD surface for listings. The sold
// flag is off limits here; only the trade lifecycle writes it.
type ListingService interface {
	CreateListing(ctx context.Context, ownerID string, input CreateListingInput) (*entity.Listing, error)
	GetListing(ctx context.Context, listingID string) (*entity.Listing, error)
	UpdateListing(ctx context.Context, listingID, actorID string, input CreateListingInput) (*entity.Listing, error)
	AttachPhoto(ctx context.Context, listingID, actorID, fileName string, data []byte) (string, error)
	DeleteListing(ctx context.Context, listingID, actorID string) error
}

type listingService struct {
	listingRepo repository.ListingRepository
	tradeRepo   repository.TradeRepository
	media       s3storage.MediaStorage
	log         logger.Logger
}

func NewListingService(
	listingRepo repository.ListingRepository,
	tradeRepo repository.TradeRepository,
	media s3storage.MediaStorage,
	log logger.Logger,
) ListingService {
	return &listingService{
		listingRepo: listingRepo,
		tradeRepo:   tradeRepo,
		media:       media,
		log:         log,
	}
}

func (s *listingService) CreateListing(ctx context.Context, ownerID string, input CreateListingInput) (*entity.Listing, error) {
	s.log.Infof("Creating listing for owner %s: %s %s", ownerID, input.Brand, input.Model)

	listing, err := entity.NewListing(ownerID, input.Brand, input.Model, input.Trim, input.Year, input.Mileage, input.Price)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidOperation)
	}

	listingID, err := s.listingRepo.Create(ctx, repository.CreateListingParams{
		OwnerID:   listing.OwnerID,
		Brand:     listing.Brand,
		Model:     listing.Model,
		Trim:      listing.Trim,
		Year:      listing.Year,
		Mileage:   listing.Mileage,
		Price:     listing.Price,
		PhotoURLs: listing.PhotoURLs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save listing: %w", err)
	}
	listing.ID = listingID

	s.log.Infof("Listing %s created for owner %s", listingID, ownerID)
	return listing, nil
}

func (s *listingService) GetListing(ctx context.Context, listingID string) (*entity.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load listing %s: %w", listingID, wrapTransient(err))
	}
	return listing, nil
}

func (s *listingService) UpdateListing(ctx context.Context, listingID, actorID string, input CreateListingInput) (*entity.Listing, error) {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if listing.OwnerID != actorID {
		s.log.Warnf("Account %s attempted to update listing %s owned by %s", actorID, listingID, listing.OwnerID)
		return nil, fmt.Errorf("only the owner can update a listing: %w", ErrForbidden)
	}
	// Descriptive fields freeze once the listing has a completed trade.
	if listing.Sold {
		return nil, fmt.Errorf("listing %s is sold and immutable: %w", listingID, ErrInvalidState)
	}
	if input.Price < 0 || input.Brand == "" || input.Model == "" {
		return nil, fmt.Errorf("invalid listing fields: %w", ErrInvalidOperation)
	}

	err = s.listingRepo.Update(ctx, repository.UpdateListingParams{
		ListingID: listingID,
		Brand:     input.Brand,
		Model:     input.Model,
		Trim:      input.Trim,
		Year:      input.Year,
		Mileage:   input.Mileage,
		Price:     input.Price,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID, err)
	}

	return s.GetListing(ctx, listingID)
}

func (s *listingService) AttachPhoto(ctx context.Context, listingID, actorID, fileName string, data []byte) (string, error) {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return "", err
	}
	if listing.OwnerID != actorID {
		return "", fmt.Errorf("only the owner can attach photos: %w", ErrForbidden)
	}
	if listing.Sold {
		return "", fmt.Errorf("listing %s is sold and immutable: %w", listingID, ErrInvalidState)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty photo payload: %w", ErrInvalidOperation)
	}

	url, err := s.media.Upload(ctx, fileName, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload photo for listing %s: %w", listingID, err)
	}

	if err := s.listingRepo.AddPhotoURL(ctx, listingID, url); err != nil {
		s.log.Warnf("Photo uploaded but not attached to listing %s, removing object: %v", listingID, err)
		if errRemove := s.media.Remove(ctx, []string{url}); errRemove != nil {
			s.log.Warnf("Failed to remove orphaned photo %s: %v", url, errRemove)
		}
		return "", fmt.Errorf("failed to attach photo to listing %s: %w", listingID, err)
	}

	return url, nil
}

// DeleteListing removes a listing that has no trade history: a pending
// trade must be cancelled first, and a completed trade pins the listing
// forever.
func (s *listingService) DeleteListing(ctx context.Context, listingID, actorID string) error {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return err
	}

	if listing.OwnerID != actorID {
		s.log.Warnf("Account %s attempted to delete listing %s owned by %s", actorID, listingID, listing.OwnerID)
		return fmt.Errorf("only the owner can delete a listing: %w", ErrForbidden)
	}

	completed, err := s.tradeRepo.CountByListing(ctx, listingID, entity.TradeStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to check completed trades for listing %s: %w", listingID, err)
	}
	if completed > 0 {
		return fmt.Errorf("listing %s has completed trade history: %w", listingID, ErrInvalidState)
	}

	pending, err := s.tradeRepo.CountByListing(ctx, listingID, entity.TradeStatusPending)
	if err != nil {
		return fmt.Errorf("failed to check pending trades for listing %s: %w", listingID, err)
	}
	if pending > 0 {
		return fmt.Errorf("listing %s has pending trades, cancel them first: %w", listingID, ErrConflict)
	}

	if err := s.listingRepo.Delete(ctx, listingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete listing %s: %w", listingID, err)
	}

	// Media cleanup only after the record is gone, so a failed delete never
	// leaves a live listing pointing at removed photos.
	if len(listing.PhotoURLs) > 0 && s.media != nil {
		if errMedia := s.media.Remove(ctx, listing.PhotoURLs); errMedia != nil {
			s.log.Warnf("Failed to remove media for listing %s: %v", listingID, errMedia)
		}
	}

	s.log.Infof("Listing %s deleted by owner %s", listingID, actorID)
	return nil
}
