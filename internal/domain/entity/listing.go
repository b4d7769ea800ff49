package entity

import (
	"errors"
	"time"
)

// Listing is a motorcycle offered for sale by one account. The Sold flag is
// owned by the trade lifecycle; everything else belongs to the owner.
type Listing struct {
	ID        string    `bson:"_id,omitempty"`
	OwnerID   string    `bson:"owner_id"`
	Brand     string    `bson:"brand"`
	Model     string    `bson:"model"`
	Trim      string    `bson:"trim,omitempty"`
	Year      int       `bson:"year"`
	Mileage   int       `bson:"mileage"`
	Price     float64   `bson:"price"`
	PhotoURLs []string  `bson:"photo_urls,omitempty"`
	Sold      bool      `bson:"is_sold"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewListing(ownerID, brand, model, trim string, year, mileage int, price float64) (*Listing, error) {
	if ownerID == "" {
		return nil, errors.New("owner ID cannot be empty")
	}
	if brand == "" {
		return nil, errors.New("brand cannot be empty")
	}
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if price < 0 {
		return nil, errors.New("price cannot be negative")
	}
	if mileage < 0 {
		return nil, errors.New("mileage cannot be negative")
	}

	now := time.Now().UTC()
	return &Listing{
		OwnerID:   ownerID,
		Brand:     brand,
		Model:     model,
		Trim:      trim,
		Year:      year,
		Mileage:   mileage,
		Price:     price,
		PhotoURLs: []string{},
		Sold:      false,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
