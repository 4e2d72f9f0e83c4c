package enums

import "fmt"

// OrderStatus tracks the payment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusCreated          OrderStatus = "created"
	OrderStatusPaymentPending   OrderStatus = "payment_pending"
	OrderStatusPaymentConfirmed OrderStatus = "payment_confirmed"
	OrderStatusPaymentFailed    OrderStatus = "payment_failed"
	OrderStatusPaymentFlagged   OrderStatus = "payment_flagged"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusPaymentPending,
	OrderStatusPaymentConfirmed,
	OrderStatusPaymentFailed,
	OrderStatusPaymentFlagged,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from the status.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusPaymentConfirmed, OrderStatusPaymentFailed, OrderStatusPaymentFlagged, OrderStatusCancelled:
		return true
	}
	return false
}

// CanCancel reports whether a user-initiated cancellation is still allowed.
// Once a webhook has moved the order to a terminal state the correct action is
// a refund, not a cancellation.
func (o OrderStatus) CanCancel() bool {
	return o == OrderStatusCreated || o == OrderStatusPaymentPending
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
