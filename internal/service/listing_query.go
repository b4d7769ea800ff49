package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/repository"
)

type SortOrder string

const (
	SortNewest       SortOrder = "newest"
	SortOldest       SortOrder = "oldest"
	SortHighestPrice SortOrder = "highestPrice"
	SortLowestPrice  SortOrder = "lowestPrice"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case SortNewest, SortOldest, SortHighestPrice, SortLowestPrice:
		return SortOrder(s), nil
	case "":
		return SortNewest, nil
	}
	return "", fmt.Errorf("unknown sort order %q: %w", s, ErrInvalidOperation)
}

// ListingQueryEngine serves the owner's listings view. Every call pulls a
// fresh projection from the store and filters/sorts it in memory; nothing
// is cached between calls.
type ListingQueryEngine interface {
	ListListings(ctx context.Context, ownerID, searchTerm string, sortBy SortOrder) ([]entity.Listing, error)
}

type listingQueryEngine struct {
	listingRepo repository.ListingRepository
	log         logger.Logger
}

func NewListingQueryEngine(listingRepo repository.ListingRepository, log logger.Logger) ListingQueryEngine {
	return &listingQueryEngine{listingRepo: listingRepo, log: log}
}

func (e *listingQueryEngine) ListListings(ctx context.Context, ownerID, searchTerm string, sortBy SortOrder) ([]entity.Listing, error) {
	listings, err := e.listingRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings for owner %s: %w", ownerID, wrapTransient(err))
	}

	filtered := listings[:0:0]
	for _, l := range listings {
		if matchesListing(&l, searchTerm) {
			filtered = append(filtered, l)
		}
	}

	sortListings(filtered, sortBy)

	e.log.Debugf("Listed %d of %d listings for owner %s", len(filtered), len(listings), ownerID)
	return filtered, nil
}

// matchesListing applies the case-insensitive substring search over brand,
// model and trim, plus substring match against the listing id.
func matchesListing(l *entity.Listing, searchTerm string) bool {
	if searchTerm == "" {
		return true
	}
	term := strings.ToLower(searchTerm)
	if strings.Contains(strings.ToLower(l.Brand), term) {
		return true
	}
	if strings.Contains(strings.ToLower(l.Model), term) {
		return true
	}
	if strings.Contains(strings.ToLower(l.Trim), term) {
		return true
	}
	return strings.Contains(l.ID, searchTerm)
}

// sortListings orders in place; the stable sort keeps insertion order for
// equal keys.
func sortListings(listings []entity.Listing, sortBy SortOrder) {
	switch sortBy {
	case SortOldest:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].CreatedAt.Before(listings[j].CreatedAt)
		})
	case SortHighestPrice:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].Price > listings[j].Price
		})
	case SortLowestPrice:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].Price < listings[j].Price
		})
	default: // SortNewest
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].CreatedAt.After(listings[j].CreatedAt)
		})
	}
}
