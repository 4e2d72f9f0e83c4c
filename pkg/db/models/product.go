package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/robojust/storefront-backend/pkg/enums"
)

// Product is a catalog entry. Prices are stored in minor currency units
// (paise); conversion from major units happens once, at the API boundary.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU         string         `gorm:"column:sku;not null;uniqueIndex"`
	Name        string         `gorm:"column:name;not null"`
	Description *string        `gorm:"column:description"`
	PricePaise  int64          `gorm:"column:price_paise;not null"`
	Currency    enums.Currency `gorm:"column:currency;type:text;not null;default:'INR'"`
	ImageURL    *string        `gorm:"column:image_url"`
	StockQty    int            `gorm:"column:stock_qty;not null;default:0"`
	Active      bool           `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
