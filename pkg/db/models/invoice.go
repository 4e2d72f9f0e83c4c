package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/robojust/storefront-backend/pkg/enums"
)

// Invoice records the receipt artifact generated for a confirmed payment.
// The unique order id and idempotency key make invoice creation at-most-once
// even when webhook deliveries race.
type Invoice struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	IdempotencyKey string              `gorm:"column:idempotency_key;not null;uniqueIndex"`
	Number         string              `gorm:"column:number;not null;uniqueIndex"`
	AmountPaise    int64               `gorm:"column:amount_paise;not null"`
	Currency       enums.Currency      `gorm:"column:currency;type:text;not null"`
	EmailedTo      string              `gorm:"column:emailed_to;not null"`
	Status         enums.InvoiceStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	FailureReason  *string             `gorm:"column:failure_reason"`
	SentAt         *time.Time          `gorm:"column:sent_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
