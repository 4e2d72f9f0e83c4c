package wishlist

import (
	"time"

	"github.com/google/uuid"

	"github.com/robojust/storefront-backend/pkg/enums"
)

type wishlistRow struct {
	WishlistID uuid.UUID
	AddedAt    time.Time
	ProductID  uuid.UUID
	SKU        string
	Name       string
	PricePaise int64
	Currency   enums.Currency
	ImageURL   *string
	StockQty   int
	Active     bool
}

// WishlistItemView is one saved product as exposed to clients.
type WishlistItemView struct {
	ProductID  uuid.UUID      `json:"product_id"`
	SKU        string         `json:"sku"`
	Name       string         `json:"name"`
	PricePaise int64          `json:"price_paise"`
	Currency   enums.Currency `json:"currency"`
	ImageURL   *string        `json:"image_url,omitempty"`
	InStock    bool           `json:"in_stock"`
	Available  bool           `json:"available"`
	AddedAt    time.Time      `json:"added_at"`
}

// WishlistPage wraps a wishlist page plus the next cursor.
type WishlistPage struct {
	Items      []WishlistItemView `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}
