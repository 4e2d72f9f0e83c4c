package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/pkg/db/models"
)

// Repository persists invoice records.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an invoices repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new invoice row. The unique order_id and idempotency_key
// indexes make a second insert for the same order fail, which callers treat
// as an already-issued signal.
func (r *Repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// FindByOrderID loads the invoice issued for an order, if any.
func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// MarkSent records a successful email delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     "sent",
			"sent_at":    sentAt,
			"updated_at": sentAt,
		}).Error
}

// MarkFailed records a delivery failure with the terminal error text.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":         "failed",
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		}).Error
}
