package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/pagination"
)

// ErrStaleStatus is returned when a guarded transition matched no row because
// the order moved out of the expected status first.
var ErrStaleStatus = errors.New("order status changed concurrently")

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayIntentID(ctx context.Context, gatewayIntentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("gateway_intent_id = ?", gatewayIntentID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(params.Limit)

	qb := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items").
		Where("user_id = ?", userID)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err = qb.Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	list := &OrderList{NextCursor: nextCursor}
	for _, row := range rows {
		totalItems := 0
		for _, item := range row.Items {
			totalItems += item.Quantity
		}
		list.Orders = append(list.Orders, OrderSummary{
			ID:               row.ID,
			Status:           row.Status,
			Currency:         row.Currency,
			AmountTotalPaise: row.AmountTotalPaise,
			TotalItems:       totalItems,
			CreatedAt:        row.CreatedAt,
		})
	}
	return list, nil
}

// Transition applies one compare-and-set status change. The UPDATE matches on
// both id and the expected current status; zero rows affected means another
// writer moved the order first and the caller must re-read before retrying.
func (r *repository) Transition(ctx context.Context, input TransitionInput) error {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", input.OrderID).
		First(&order).Error
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	// Map-based Updates bypass the model's json serializer, so the appended
	// history is marshalled here before it reaches the driver.
	history, err := json.Marshal(order.StatusHistory.Append(input.To.String(), input.Source.String(), now))
	if err != nil {
		return err
	}
	updates := map[string]any{
		"status":         input.To,
		"status_history": string(history),
		"updated_at":     now,
	}
	for column, value := range input.Updates {
		updates[column] = value
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", input.OrderID, input.From).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}
