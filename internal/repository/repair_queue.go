package repository

import "context"

// SoldItemRepair is a pending re-apply of the sold-items ledger append that
// failed after a trade and its listing were already settled.
type SoldItemRepair struct {
	TradeID   string `json:"trade_id"`
	SellerID  string `json:"seller_id"`
	ListingID string `json:"listing_id"`
	Attempts  int    `json:"attempts"`
}

// RepairQueue holds sold-items repairs until a worker re-applies them.
// Dequeue reports ErrNotFound when the queue is empty.
type RepairQueue interface {
	Enqueue(ctx context.Context, repair SoldItemRepair) error
	Dequeue(ctx context.Context) (*SoldItemRepair, error)
}
