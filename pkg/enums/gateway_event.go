package enums

import "fmt"

// GatewayEventType enumerates the Razorpay webhook events the platform acts on.
// Unknown event types are acknowledged but ignored so new gateway events do not
// break delivery.
type GatewayEventType string

const (
	GatewayEventPaymentCaptured GatewayEventType = "payment.captured"
	GatewayEventPaymentFailed   GatewayEventType = "payment.failed"
)

var validGatewayEventTypes = []GatewayEventType{
	GatewayEventPaymentCaptured,
	GatewayEventPaymentFailed,
}

// String implements fmt.Stringer.
func (g GatewayEventType) String() string {
	return string(g)
}

// IsValid reports whether the event type is one the reconciler handles.
func (g GatewayEventType) IsValid() bool {
	for _, candidate := range validGatewayEventTypes {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGatewayEventType converts raw input into a GatewayEventType.
func ParseGatewayEventType(value string) (GatewayEventType, error) {
	for _, candidate := range validGatewayEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unhandled gateway event %q", value)
}
