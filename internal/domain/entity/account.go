package entity

import "time"

// Account is a marketplace participant. SoldItems is an append-only set of
// listing ids, maintained by the trade lifecycle as a secondary index over
// completed trades; Trade.Status remains the source of truth.
type Account struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	AvatarURL string    `bson:"avatar_url,omitempty"`
	SoldItems []string  `bson:"sold_items,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// AccountSummary carries the display fields joined into enriched trades.
type AccountSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (a *Account) Summary() *AccountSummary {
	return &AccountSummary{
		ID:        a.ID,
		Name:      a.Name,
		AvatarURL: a.AvatarURL,
	}
}

func (a *Account) HasSold(listingID string) bool {
	for _, id := range a.SoldItems {
		if id == listingID {
			return true
		}
	}
	return false
}
