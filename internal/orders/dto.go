package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
	"github.com/robojust/storefront-backend/pkg/types"
)

// TransitionInput describes one guarded status change. The update is applied
// only while the order is still in the expected From status; a concurrent
// writer that moved the order first wins and the loser gets ErrStaleStatus.
type TransitionInput struct {
	OrderID uuid.UUID
	From    enums.OrderStatus
	To      enums.OrderStatus
	Source  enums.StatusSource
	Updates map[string]any
}

// OrderItemView is the item snapshot exposed to clients.
type OrderItemView struct {
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	Name           string     `json:"name"`
	SKU            string     `json:"sku"`
	UnitPricePaise int64      `json:"unit_price_paise"`
	Quantity       int        `json:"quantity"`
	TotalPaise     int64      `json:"total_paise"`
}

// OrderSummary exposes the aggregated fields returned in the order list.
type OrderSummary struct {
	ID               uuid.UUID         `json:"id"`
	Status           enums.OrderStatus `json:"status"`
	Currency         enums.Currency    `json:"currency"`
	AmountTotalPaise int64             `json:"amount_total_paise"`
	TotalItems       int               `json:"total_items"`
	CreatedAt        time.Time         `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OrderDetail is the full order view including the item snapshot and the
// status audit trail.
type OrderDetail struct {
	ID               uuid.UUID           `json:"id"`
	Status           enums.OrderStatus   `json:"status"`
	Currency         enums.Currency      `json:"currency"`
	AmountTotalPaise int64               `json:"amount_total_paise"`
	ReceiptID        string              `json:"receipt_id"`
	GatewayIntentID  string              `json:"gateway_intent_id,omitempty"`
	GatewayPaymentID *string             `json:"gateway_payment_id,omitempty"`
	FlagReason       *string             `json:"flag_reason,omitempty"`
	Items            []OrderItemView     `json:"items"`
	StatusHistory    types.StatusHistory `json:"status_history"`
	ConfirmedAt      *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

// DetailFromModel maps a persisted order onto the client view.
func DetailFromModel(order *models.Order) *OrderDetail {
	detail := &OrderDetail{
		ID:               order.ID,
		Status:           order.Status,
		Currency:         order.Currency,
		AmountTotalPaise: order.AmountTotalPaise,
		ReceiptID:        order.ReceiptID,
		GatewayIntentID:  order.GatewayIntentID,
		GatewayPaymentID: order.GatewayPaymentID,
		FlagReason:       order.FlagReason,
		StatusHistory:    order.StatusHistory,
		ConfirmedAt:      order.ConfirmedAt,
		CancelledAt:      order.CancelledAt,
		CreatedAt:        order.CreatedAt,
	}
	for _, item := range order.Items {
		detail.Items = append(detail.Items, OrderItemView{
			ProductID:      item.ProductID,
			Name:           item.Name,
			SKU:            item.SKU,
			UnitPricePaise: item.UnitPricePaise,
			Quantity:       item.Quantity,
			TotalPaise:     item.TotalPaise,
		})
	}
	return detail
}
