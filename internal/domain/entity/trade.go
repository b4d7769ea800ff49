package entity

import (
	"errors"
	"fmt"
	"time"
)

type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusCompleted TradeStatus = "completed"
	TradeStatusCancelled TradeStatus = "cancelled"
)

// Trade is a negotiated exchange between a buyer and a seller over exactly
// one listing. Status is the authoritative record of the exchange; the
// listing's Sold flag and the seller's sold-items set are derived from it.
type Trade struct {
	ID          string      `bson:"_id,omitempty"`
	ListingID   string      `bson:"listing_id"`
	BuyerID     string      `bson:"buyer_id"`
	SellerID    string      `bson:"seller_id"`
	Status      TradeStatus `bson:"status"`
	CreatedAt   time.Time   `bson:"created_at"`
	CompletedAt *time.Time  `bson:"completed_at,omitempty"`
}

func NewTrade(listingID, buyerID, sellerID string) (*Trade, error) {
	if listingID == "" {
		return nil, errors.New("listing ID cannot be empty")
	}
	if buyerID == "" {
		return nil, errors.New("buyer ID cannot be empty")
	}
	if sellerID == "" {
		return nil, errors.New("seller ID cannot be empty")
	}
	if buyerID == sellerID {
		return nil, errors.New("buyer and seller cannot be the same account")
	}

	return &Trade{
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Status:    TradeStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Transition moves the trade to newStatus if the state machine allows it.
// Completed and cancelled are terminal.
func (t *Trade) Transition(newStatus TradeStatus) error {
	validTransitions := map[TradeStatus][]TradeStatus{
		TradeStatusPending:   {TradeStatusCompleted, TradeStatusCancelled},
		TradeStatusCompleted: {},
		TradeStatusCancelled: {},
	}
	allowed, ok := validTransitions[t.Status]
	if !ok {
		return fmt.Errorf("cannot transition from unknown status %s", t.Status)
	}
	for _, s := range allowed {
		if s == newStatus {
			t.Status = newStatus
			return nil
		}
	}
	return fmt.Errorf("invalid status transition from %s to %s", t.Status, newStatus)
}

func (t *Trade) IsTerminal() bool {
	return t.Status == TradeStatusCompleted || t.Status == TradeStatusCancelled
}

func (t *Trade) IsParticipant(accountID string) bool {
	return accountID != "" && (accountID == t.BuyerID || accountID == t.SellerID)
}

// SettledAt is the timestamp used for sales reporting. Trades completed
// before the completion timestamp existed fall back to creation time.
func (t *Trade) SettledAt() time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.CreatedAt
}
