package repository

import (
	"context"
	"time"

	"github.com/mototrade/trade-service/internal/domain/entity"
)

// TradeChangeSubject is the change-feed subject for the trade record kind.
// The store emits one event per committed insert, update or delete.
const TradeChangeSubject = "trades.changed"

const (
	ChangeOpInsert = "insert"
	ChangeOpUpdate = "update"
	ChangeOpDelete = "delete"
)

// TradeChangeEvent identifies the changed trade and its parties so that
// notifier subscriptions can be routed. It carries no record state;
// consumers re-query for the authoritative view.
type TradeChangeEvent struct {
	Op        string `json:"op"`
	TradeID   string `json:"trade_id"`
	ListingID string `json:"listing_id"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
}

type CreateTradeParams struct {
	ListingID string
	BuyerID   string
	SellerID  string
}

// UpdateTradeStatusParams describes a guarded status transition: the write
// commits only if the trade's current status still equals From.
type UpdateTradeStatusParams struct {
	TradeID     string
	From        entity.TradeStatus
	To          entity.TradeStatus
	CompletedAt *time.Time
}

type TradeRepository interface {
	Create(ctx context.Context, params CreateTradeParams) (string, error)
	GetByID(ctx context.Context, tradeID string) (*entity.Trade, error)
	// UpdateStatus performs the guarded transition. ErrOptimisticLock means
	// the From guard no longer held; ErrNotFound means the trade is gone.
	UpdateStatus(ctx context.Context, params UpdateTradeStatusParams) (*entity.Trade, error)
	// Delete removes the trade only while its status equals ifStatus.
	Delete(ctx context.Context, tradeID string, ifStatus entity.TradeStatus) error
	ListByParticipant(ctx context.Context, accountID string) ([]entity.Trade, error)
	CountByListing(ctx context.Context, listingID string, status entity.TradeStatus) (int64, error)
}
