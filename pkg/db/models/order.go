package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/robojust/storefront-backend/pkg/enums"
	"github.com/robojust/storefront-backend/pkg/types"
)

// Order is the authoritative record of a purchase and its payment lifecycle.
// Orders are never deleted; the status history is the financial audit trail.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'created'"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null;default:'INR'"`
	AmountTotalPaise int64               `gorm:"column:amount_total_paise;not null"`
	ReceiptID        string              `gorm:"column:receipt_id;not null"`
	GatewayIntentID  string              `gorm:"column:gateway_intent_id;index:idx_orders_gateway_intent_id,unique,where:gateway_intent_id <> ''"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id;uniqueIndex"`
	IdempotencyKey   *string             `gorm:"column:idempotency_key;uniqueIndex"`
	FlagReason       *string             `gorm:"column:flag_reason"`
	StatusHistory    types.StatusHistory `gorm:"column:status_history;type:jsonb;serializer:json"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt      *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
