package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"

	"github.com/robojust/storefront-backend/pkg/config"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
	"github.com/robojust/storefront-backend/pkg/logger"
)

var (
	errKeyIDRequired         = errors.New("razorpay key id is required")
	errKeySecretRequired     = errors.New("razorpay key secret is required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
)

// OrderCreator is the slice of the Razorpay SDK the client depends on.
// Declared as an interface so tests can substitute a fake gateway.
type OrderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client wraps the Razorpay SDK with centralized auth, timeouts, and error mapping.
type Client struct {
	orders        OrderCreator
	keyID         string
	keySecret     string
	webhookSecret string
	timeout       time.Duration
	logger        *logger.Logger
}

// Intent is the server-side payment intent handle returned by the gateway.
type Intent struct {
	ID          string
	AmountPaise int64
	Currency    string
	ReceiptID   string
}

// CreateOrderParams carries the inputs for a gateway order. Amounts are
// integer paise; fractional amounts never reach this layer.
type CreateOrderParams struct {
	AmountPaise int64
	Currency    string
	ReceiptID   string
	Notes       map[string]string
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}
	if err := validateKeyID(keyID); err != nil {
		return nil, err
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sdk := razorpay.NewClient(keyID, keySecret)

	c := &Client{
		orders:        sdk.Order,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		timeout:       timeout,
		logger:        logg,
	}

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}
	return c, nil
}

// NewClientWithOrders builds a client around a custom order resource. Used in tests.
func NewClientWithOrders(orders OrderCreator, keySecret, webhookSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		orders:        orders,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		timeout:       timeout,
	}
}

// KeyID returns the public gateway key handed to checkout clients.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// KeySecret returns the API secret used for client-callback signatures.
func (c *Client) KeySecret() string {
	if c == nil {
		return ""
	}
	return c.keySecret
}

// SigningSecret returns the webhook shared secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// CreateOrder asks the gateway for a payment intent. The call is bounded by
// the configured timeout so a stalled gateway never hangs checkout.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*Intent, error) {
	if c == nil || c.orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "razorpay client not initialized")
	}
	if params.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive number of paise")
	}
	if params.Currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency is required")
	}
	if params.ReceiptID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt id is required")
	}

	data := map[string]interface{}{
		"amount":          params.AmountPaise,
		"currency":        params.Currency,
		"receipt":         params.ReceiptID,
		"payment_capture": 1,
	}
	if len(params.Notes) > 0 {
		notes := map[string]interface{}{}
		for k, v := range params.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type createResult struct {
		body map[string]interface{}
		err  error
	}
	resultCh := make(chan createResult, 1)
	go func() {
		body, err := c.orders.Create(data, nil)
		resultCh <- createResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "gateway order creation timed out")
	case result := <-resultCh:
		if result.err != nil {
			return nil, mapGatewayError(result.err)
		}
		return intentFromResponse(result.body, params)
	}
}

func intentFromResponse(body map[string]interface{}, params CreateOrderParams) (*Intent, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway response missing order id")
	}

	amount := params.AmountPaise
	if raw, ok := body["amount"].(float64); ok {
		amount = int64(raw)
	}
	currency := params.Currency
	if raw, ok := body["currency"].(string); ok && raw != "" {
		currency = raw
	}

	if amount != params.AmountPaise {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("gateway echoed amount %d, expected %d", amount, params.AmountPaise))
	}

	return &Intent{
		ID:          id,
		AmountPaise: amount,
		Currency:    currency,
		ReceiptID:   params.ReceiptID,
	}, nil
}

func mapGatewayError(err error) error {
	var badRequest *rzperrors.BadRequestError
	if errors.As(err, &badRequest) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayRejected, err, "gateway rejected order creation")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway unavailable")
}

func validateKeyID(keyID string) error {
	if strings.HasPrefix(keyID, "rzp_test_") || strings.HasPrefix(keyID, "rzp_live_") {
		return nil
	}
	return fmt.Errorf("razorpay key id must start with rzp_test_ or rzp_live_")
}
