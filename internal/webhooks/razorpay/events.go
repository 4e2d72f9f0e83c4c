package razorpaywebhook

import (
	"strings"

	"github.com/robojust/storefront-backend/pkg/enums"
)

// Event is the Razorpay webhook envelope. Only the fields the reconciler
// reads are declared; everything else in the payload is ignored.
type Event struct {
	Entity    string       `json:"entity"`
	EventType string       `json:"event"`
	Payload   EventPayload `json:"payload"`
	CreatedAt int64        `json:"created_at"`
}

// EventPayload nests the affected payment entity.
type EventPayload struct {
	Payment PaymentWrapper `json:"payment"`
}

// PaymentWrapper matches Razorpay's payload.payment.entity nesting.
type PaymentWrapper struct {
	Entity PaymentEntity `json:"entity"`
}

// PaymentEntity is the gateway's view of one payment attempt. Amount is in
// paise, as the gateway reports it.
type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	Email            string `json:"email"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// Type parses the envelope's event name. Unknown events yield an error from
// ParseGatewayEventType and are acknowledged without processing.
func (e *Event) Type() (enums.GatewayEventType, error) {
	return enums.ParseGatewayEventType(e.EventType)
}

// IdempotencyID derives the stable dedupe identity for a delivery. Gateway
// retries of one event carry the same payment id, so retries collapse onto
// one key regardless of delivery attempt.
func (e *Event) IdempotencyID() string {
	payment := e.Payload.Payment.Entity
	ref := strings.TrimSpace(payment.ID)
	if ref == "" {
		ref = strings.TrimSpace(payment.OrderID)
	}
	if ref == "" {
		return ""
	}
	return e.EventType + ":" + ref
}
