package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
)

// ProductView is the catalog entry exposed to clients.
type ProductView struct {
	ID          uuid.UUID      `json:"id"`
	SKU         string         `json:"sku"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	PricePaise  int64          `json:"price_paise"`
	Currency    enums.Currency `json:"currency"`
	ImageURL    *string        `json:"image_url,omitempty"`
	InStock     bool           `json:"in_stock"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ProductList wraps a catalog page plus the next cursor.
type ProductList struct {
	Products   []ProductView `json:"products"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ViewFromModel maps a persisted product onto the client view.
func ViewFromModel(p *models.Product) ProductView {
	return ProductView{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		PricePaise:  p.PricePaise,
		Currency:    p.Currency,
		ImageURL:    p.ImageURL,
		InStock:     p.StockQty > 0,
		CreatedAt:   p.CreatedAt,
	}
}
