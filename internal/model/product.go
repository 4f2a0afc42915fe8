package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is the canonical, immutable record of a marketplace listing
// at the moment of analysis. It is constructed once by the normalizer and
// never mutated afterwards.
type ProductSnapshot struct {
	ProductID    string   `json:"product_id"`
	Title        string   `json:"title"`
	URL          string   `json:"url,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`

	SourcePrice  decimal.Decimal `json:"source_price"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Currency     string          `json:"currency"` // ISO 4217, canonicalized by the normalizer

	Rating       float64 `json:"rating"`        // 0.0-5.0
	FeedbackRate float64 `json:"feedback_rate"` // 0.0-1.0 fraction of positive feedback

	OrderCount     int  `json:"order_count"`
	StoreAgeMonths int  `json:"store_age_months"`
	AgeUnknown     bool `json:"age_unknown,omitempty"` // established date missing from the listing
}

// LandedCost is the seller's per-unit cost before fees.
func (s *ProductSnapshot) LandedCost() decimal.Decimal {
	return s.SourcePrice.Add(s.ShippingCost)
}

// TrackedStore is a competitor store the user is monitoring. Created via the
// track-store action and kept until explicitly untracked.
type TrackedStore struct {
	StoreID            string    `json:"store_id"`
	Domain             string    `json:"domain"`
	ProductCategories  []string  `json:"product_categories,omitempty"`
	LastSeenProductIDs []string  `json:"last_seen_product_ids,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
}

// SellsProduct reports whether the store has been seen selling the given
// product ID.
func (t TrackedStore) SellsProduct(productID string) bool {
	if productID == "" {
		return false
	}
	for _, id := range t.LastSeenProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}
