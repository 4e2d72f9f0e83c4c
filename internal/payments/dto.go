package payments

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/robojust/storefront-backend/pkg/enums"
)

// CreateOrderRequest is the checkout payload. Amount is in major currency
// units (rupees) exactly as the storefront displays it; the service converts
// to paise and cross-checks against the server-side cart total.
type CreateOrderRequest struct {
	Amount   json.Number `json:"amount" validate:"required"`
	Currency string      `json:"currency"`
}

// CreateOrderResponse carries everything the hosted checkout needs to open
// the gateway widget.
type CreateOrderResponse struct {
	IntentID    string    `json:"intentId"`
	AmountPaise int64     `json:"amount"`
	Currency    string    `json:"currency"`
	OrderID     uuid.UUID `json:"orderId"`
	ReceiptID   string    `json:"receiptId"`
	KeyID       string    `json:"keyId"`
}

// VerifyPaymentRequest is the post-checkout callback payload from the client.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpayOrderId" validate:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	RazorpaySignature string `json:"razorpaySignature" validate:"required"`
}

// VerifyPaymentResponse reports the server-side order status. The webhook
// reconciler remains the source of truth for payment state; this response
// only tells the client what the server has durably recorded so far.
type VerifyPaymentResponse struct {
	OrderID  uuid.UUID         `json:"orderId"`
	Status   enums.OrderStatus `json:"status"`
	Verified bool              `json:"verified"`
}
