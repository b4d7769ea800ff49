package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/repository"
)

type TradeTypeFilter string

const (
	TradeTypeAll     TradeTypeFilter = "all"
	TradeTypeBuying  TradeTypeFilter = "buying"
	TradeTypeSelling TradeTypeFilter = "selling"
)

type TradeStatusFilter string

const (
	TradeFilterAll        TradeStatusFilter = "all"
	TradeFilterCompleted  TradeStatusFilter = "completed"
	TradeFilterInProgress TradeStatusFilter = "inProgress"
)

func ParseTradeTypeFilter(s string) (TradeTypeFilter, error) {
	switch TradeTypeFilter(s) {
	case TradeTypeAll, TradeTypeBuying, TradeTypeSelling:
		return TradeTypeFilter(s), nil
	case "":
		return TradeTypeAll, nil
	}
	return "", fmt.Errorf("unknown trade type filter %q: %w", s, ErrInvalidOperation)
}

func ParseTradeStatusFilter(s string) (TradeStatusFilter, error) {
	switch TradeStatusFilter(s) {
	case TradeFilterAll, TradeFilterCompleted, TradeFilterInProgress:
		return TradeStatusFilter(s), nil
	case "":
		return TradeFilterAll, nil
	}
	return "", fmt.Errorf("unknown trade status filter %q: %w", s, ErrInvalidOperation)
}

// EnrichedTrade is a trade joined with its listing and both party
// summaries for display. Any join field may be nil when the referenced
// record has since been deleted; consumers render a placeholder.
type EnrichedTrade struct {
	Trade   entity.Trade           `json:"trade"`
	Type    TradeTypeFilter        `json:"type"`
	Listing *entity.Listing        `json:"listing,omitempty"`
	Buyer   *entity.AccountSummary `json:"buyer,omitempty"`
	Seller  *entity.AccountSummary `json:"seller,omitempty"`
}

// MonthlySales is one month's bucket of a seller's completed trades.
type MonthlySales struct {
	Month       time.Month `json:"month"`
	Count       int        `json:"count"`
	TotalAmount float64    `json:"total_amount"`
}

// TradeQueryEngine serves a participant's trade history, enriched and
// filtered, re-deriving the projection from the store on every call.
type TradeQueryEngine interface {
	ListTrades(ctx context.Context, accountID, searchTerm string, typeFilter TradeTypeFilter, statusFilter TradeStatusFilter, sortBy SortOrder) ([]EnrichedTrade, error)
	MonthlySalesSummary(ctx context.Context, accountID string, year int) ([]MonthlySales, error)
}

type tradeQueryEngine struct {
	tradeRepo    repository.TradeRepository
	listingRepo  repository.ListingRepository
	accountRepo  repository.AccountRepository
	summaryCache repository.PartySummaryCache
	cacheTTL     time.Duration
	log          logger.Logger
}

func NewTradeQueryEngine(
	tradeRepo repository.TradeRepository,
	listingRepo repository.ListingRepository,
	accountRepo repository.AccountRepository,
	summaryCache repository.PartySummaryCache,
	cacheTTL time.Duration,
	log logger.Logger,
) TradeQueryEngine {
	return &tradeQueryEngine{
		tradeRepo:    tradeRepo,
		listingRepo:  listingRepo,
		accountRepo:  accountRepo,
		summaryCache: summaryCache,
		cacheTTL:     cacheTTL,
		log:          log,
	}
}

func (e *tradeQueryEngine) ListTrades(ctx context.Context, accountID, searchTerm string, typeFilter TradeTypeFilter, statusFilter TradeStatusFilter, sortBy SortOrder) ([]EnrichedTrade, error) {
	trades, err := e.tradeRepo.ListByParticipant(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades for account %s: %w", accountID, wrapTransient(err))
	}

	enriched := make([]EnrichedTrade, 0, len(trades))
	for _, t := range trades {
		et := e.enrich(ctx, t, accountID)
		if !matchesTradeType(&et, typeFilter) {
			continue
		}
		if !matchesTradeStatus(&et.Trade, statusFilter) {
			continue
		}
		if !matchesTradeSearch(&et, searchTerm) {
			continue
		}
		enriched = append(enriched, et)
	}

	sortEnrichedTrades(enriched, sortBy)

	e.log.Debugf("Listed %d of %d trades for account %s", len(enriched), len(trades), accountID)
	return enriched, nil
}

func (e *tradeQueryEngine) enrich(ctx context.Context, trade entity.Trade, viewerID string) EnrichedTrade {
	et := EnrichedTrade{Trade: trade, Type: TradeTypeSelling}
	if trade.BuyerID == viewerID {
		et.Type = TradeTypeBuying
	}

	listing, err := e.listingRepo.GetByID(ctx, trade.ListingID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			e.log.Warnf("Failed to join listing %s for trade %s: %v", trade.ListingID, trade.ID, err)
		}
	} else {
		et.Listing = listing
	}

	et.Buyer = e.partySummary(ctx, trade.BuyerID)
	et.Seller = e.partySummary(ctx, trade.SellerID)
	return et
}

// partySummary resolves an account's display fields through the cache with
// a store fallback. A missing account yields nil and the consumer renders
// a placeholder.
func (e *tradeQueryEngine) partySummary(ctx context.Context, accountID string) *entity.AccountSummary {
	if e.summaryCache != nil {
		if summary, err := e.summaryCache.Get(ctx, accountID); err == nil {
			return summary
		}
	}

	account, err := e.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			e.log.Warnf("Failed to join account %s: %v", accountID, err)
		}
		return nil
	}

	summary := account.Summary()
	if e.summaryCache != nil {
		if err := e.summaryCache.Set(ctx, accountID, summary, e.cacheTTL); err != nil {
			e.log.Warnf("Failed to cache party summary for account %s: %v", accountID, err)
		}
	}
	return summary
}

func (e *tradeQueryEngine) MonthlySalesSummary(ctx context.Context, accountID string, year int) ([]MonthlySales, error) {
	trades, err := e.tradeRepo.ListByParticipant(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades for account %s: %w", accountID, wrapTransient(err))
	}

	summary := make([]MonthlySales, 12)
	for i := range summary {
		summary[i].Month = time.Month(i + 1)
	}

	for _, t := range trades {
		if t.SellerID != accountID || t.Status != entity.TradeStatusCompleted {
			continue
		}
		settled := t.SettledAt()
		if settled.Year() != year {
			continue
		}

		bucket := &summary[int(settled.Month())-1]
		bucket.Count++
		// A completed trade blocks listing deletion, so the join only comes
		// back empty for legacy data; those sales count with amount zero.
		if listing, errGet := e.listingRepo.GetByID(ctx, t.ListingID); errGet == nil {
			bucket.TotalAmount += listing.Price
		}
	}

	return summary, nil
}

func matchesTradeType(et *EnrichedTrade, filter TradeTypeFilter) bool {
	return filter == TradeTypeAll || filter == "" || et.Type == filter
}

func matchesTradeStatus(t *entity.Trade, filter TradeStatusFilter) bool {
	switch filter {
	case TradeFilterCompleted:
		return t.Status == entity.TradeStatusCompleted
	case TradeFilterInProgress:
		return t.Status != entity.TradeStatusCompleted
	default:
		return true
	}
}

// matchesTradeSearch mirrors the listings search: brand and model of the
// joined listing plus the trade id. Trades whose listing is gone only
// match through their id.
func matchesTradeSearch(et *EnrichedTrade, searchTerm string) bool {
	if searchTerm == "" {
		return true
	}
	term := strings.ToLower(searchTerm)
	if et.Listing != nil {
		if strings.Contains(strings.ToLower(et.Listing.Brand), term) {
			return true
		}
		if strings.Contains(strings.ToLower(et.Listing.Model), term) {
			return true
		}
	}
	return strings.Contains(et.Trade.ID, searchTerm)
}

func sortEnrichedTrades(trades []EnrichedTrade, sortBy SortOrder) {
	price := func(et *EnrichedTrade) float64 {
		if et.Listing == nil {
			return 0
		}
		return et.Listing.Price
	}

	switch sortBy {
	case SortOldest:
		sort.SliceStable(trades, func(i, j int) bool {
			return trades[i].Trade.CreatedAt.Before(trades[j].Trade.CreatedAt)
		})
	case SortHighestPrice:
		sort.SliceStable(trades, func(i, j int) bool {
			return price(&trades[i]) > price(&trades[j])
		})
	case SortLowestPrice:
		sort.SliceStable(trades, func(i, j int) bool {
			return price(&trades[i]) < price(&trades[j])
		})
	default: // SortNewest
		sort.SliceStable(trades, func(i, j int) bool {
			return trades[i].Trade.CreatedAt.After(trades[j].Trade.CreatedAt)
		})
	}
}
