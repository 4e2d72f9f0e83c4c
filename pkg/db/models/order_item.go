package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is the immutable snapshot of one cart line taken at order
// creation. It deliberately copies name and price instead of referencing the
// live catalog row, so later catalog edits cannot change what was sold.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Name           string     `gorm:"column:name;not null"`
	SKU            string     `gorm:"column:sku;not null"`
	UnitPricePaise int64      `gorm:"column:unit_price_paise;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	TotalPaise     int64      `gorm:"column:total_paise;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
