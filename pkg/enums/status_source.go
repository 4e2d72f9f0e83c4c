package enums

// StatusSource identifies which actor wrote a status history entry.
type StatusSource string

const (
	StatusSourceCheckout StatusSource = "checkout"
	StatusSourceWebhook  StatusSource = "webhook"
	StatusSourceUser     StatusSource = "user"
)

// String implements fmt.Stringer.
func (s StatusSource) String() string {
	return string(s)
}
