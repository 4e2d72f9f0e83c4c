package razorpaywebhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/internal/orders"
	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
	"github.com/robojust/storefront-backend/pkg/types"
)

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingCart struct {
	cleared []uuid.UUID
}

func (c *recordingCart) Clear(ctx context.Context, userID uuid.UUID) error {
	c.cleared = append(c.cleared, userID)
	return nil
}

type recordingInvoices struct {
	issued []uuid.UUID
	err    error
}

func (i *recordingInvoices) IssueForOrder(ctx context.Context, orderID uuid.UUID) error {
	i.issued = append(i.issued, orderID)
	return i.err
}

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'created',
  currency TEXT NOT NULL DEFAULT 'INR',
  amount_total_paise INTEGER NOT NULL,
  receipt_id TEXT NOT NULL,
  gateway_intent_id TEXT,
  gateway_payment_id TEXT,
  idempotency_key TEXT,
  flag_reason TEXT,
  status_history TEXT NOT NULL DEFAULT '[]',
  confirmed_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	// Same unique indexes the goose migration creates, so constraint
	// behavior matches production.
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_gateway_intent_id ON orders (gateway_intent_id) WHERE gateway_intent_id <> ''`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_gateway_payment_id ON orders (gateway_payment_id)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_idempotency_key ON orders (idempotency_key)`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  sku TEXT NOT NULL,
  unit_price_paise INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  total_paise INTEGER NOT NULL,
  created_at DATETIME
);`).Error)
	return db
}

type webhookFixture struct {
	svc      *Service
	repo     orders.Repository
	cart     *recordingCart
	invoices *recordingInvoices
}

func newWebhookFixture(t *testing.T, db *gorm.DB) *webhookFixture {
	t.Helper()

	repo := orders.NewRepository(db)
	cart := &recordingCart{}
	invoices := &recordingInvoices{}
	svc, err := NewService(ServiceParams{
		OrdersRepo:        repo,
		TransactionRunner: passthroughTxRunner{},
		Cart:              cart,
		Invoices:          invoices,
	})
	require.NoError(t, err)
	return &webhookFixture{svc: svc, repo: repo, cart: cart, invoices: invoices}
}

func seedPendingOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, amountPaise int64) *models.Order {
	t.Helper()

	now := time.Now().UTC()
	order := &models.Order{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Status:           status,
		Currency:         enums.CurrencyINR,
		AmountTotalPaise: amountPaise,
		ReceiptID:        "receipt_order_1700000000",
		GatewayIntentID:  "order_" + uuid.NewString()[:8],
		StatusHistory: types.StatusHistory{}.
			Append(enums.OrderStatusCreated.String(), enums.StatusSourceCheckout.String(), now).
			Append(status.String(), enums.StatusSourceCheckout.String(), now),
		CreatedAt: now,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func capturedEvent(gatewayOrderID, paymentID string, amount int64) *Event {
	return &Event{
		Entity:    "event",
		EventType: "payment.captured",
		Payload: EventPayload{Payment: PaymentWrapper{Entity: PaymentEntity{
			ID:       paymentID,
			OrderID:  gatewayOrderID,
			Amount:   amount,
			Currency: "INR",
			Status:   "captured",
		}}},
	}
}

func failedEvent(gatewayOrderID, paymentID string, amount int64, reason string) *Event {
	return &Event{
		Entity:    "event",
		EventType: "payment.failed",
		Payload: EventPayload{Payment: PaymentWrapper{Entity: PaymentEntity{
			ID:               paymentID,
			OrderID:          gatewayOrderID,
			Amount:           amount,
			Currency:         "INR",
			Status:           "failed",
			ErrorDescription: reason,
		}}},
	}
}

func TestHandleCapturedConfirmsOrder(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	ctx := context.Background()

	order := seedPendingOrder(t, db, enums.OrderStatusPaymentPending, 49900)
	event := capturedEvent(order.GatewayIntentID, "pay_ABC123", 49900)

	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, updated.Status)
	require.NotNil(t, updated.GatewayPaymentID)
	assert.Equal(t, "pay_ABC123", *updated.GatewayPaymentID)
	require.NotNil(t, updated.IdempotencyKey)
	assert.Equal(t, "payment.captured:pay_ABC123", *updated.IdempotencyKey)
	require.NotNil(t, updated.ConfirmedAt)

	last, ok := updated.StatusHistory.Last()
	require.True(t, ok)
	assert.Equal(t, enums.StatusSourceWebhook.String(), last.Source)

	assert.Equal(t, []uuid.UUID{order.UserID}, fx.cart.cleared)
	assert.Equal(t, []uuid.UUID{order.ID}, fx.invoices.issued)
}

func TestHandleCapturedReplayIsAckedOnce(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	ctx := context.Background()

	order := seedPendingOrder(t, db, enums.OrderStatusPaymentPending, 49900)
	event := capturedEvent(order.GatewayIntentID, "pay_ABC123", 49900)

	require.NoError(t, fx.svc.HandleEvent(ctx, event))
	require.NoError(t, fx.svc.HandleEvent(ctx, event))
	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, updated.Status)
	// Two entries from checkout seeding plus exactly one confirmation.
	assert.Len(t, updated.StatusHistory, 3)
	assert.Len(t, fx.invoices.issued, 1)
	assert.Len(t, fx.cart.cleared, 1)
}

func TestHandleCapturedAmountMismatchFlagsOrder(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	ctx := context.Background()

	order := seedPendingOrder(t, db, enums.OrderStatusPaymentPending, 49900)
	event := capturedEvent(order.GatewayIntentID, "pay_TAMPER", 100)

	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentFlagged, updated.Status)
	require.NotNil(t, updated.FlagReason)
	assert.Contains(t, *updated.FlagReason, "100 paise")
	assert.Nil(t, updated.ConfirmedAt)
	assert.Empty(t, fx.invoices.issued, "a flagged payment must not produce an invoice")
	assert.Empty(t, fx.cart.cleared)
}

func TestHandleCapturedCurrencyMismatchFlagsOrder(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	ctx := context.Background()

	order := seedPendingOrder(t, db, enums.OrderStatusPaymentPending, 49900)
	event := capturedEvent(order.GatewayIntentID, "pay_FX", 49900)
	event.Payload.Payment.Entity.Currency = "USD"

	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentFlagged, updated.Status)
}

func TestHandleCapturedForCancelledOrderFlags(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	ctx := context.Background()

	order := seedPendingOrder(t, db, enums.OrderStatusCancelled, 49900)
	event := capturedEvent(order.GatewayIntentID, "pay_LATE", 49900)

	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentFlagged, updated.Status)
	require.NotNil(t, updated.FlagReason)
	assert.Contains(t, *updated.FlagReason, "cancelled")
	assert.Empty(t, fx.invoices.issued)
}

func TestHandleFailedMarksOrderFailed(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	ctx := context.Background()

	order := seedPendingOrder(t, db, enums.OrderStatusPaymentPending, 49900)
	event := failedEvent(order.GatewayIntentID, "pay_NSF", 49900, "insufficient funds")

	require.NoError(t, fx.svc.HandleEvent(ctx, event))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentFailed, updated.Status)
	require.NotNil(t, updated.FlagReason)
	assert.Equal(t, "insufficient funds", *updated.FlagReason)
	assert.Empty(t, fx.invoices.issued)
}

func TestHandleFailedAfterConfirmationIsIgnored(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	ctx := context.Background()

	order := seedPendingOrder(t, db, enums.OrderStatusPaymentPending, 49900)
	require.NoError(t, fx.svc.HandleEvent(ctx, capturedEvent(order.GatewayIntentID, "pay_A", 49900)))
	require.NoError(t, fx.svc.HandleEvent(ctx, failedEvent(order.GatewayIntentID, "pay_A", 49900, "late failure")))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, updated.Status)
}

func TestHandleCapturedRetryPaymentAfterFailureFlags(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	ctx := context.Background()

	// Razorpay lets the buyer retry on the same gateway order, minting a new
	// payment id. If the capture lands after we recorded the failure, money
	// moved on an order we already closed.
	order := seedPendingOrder(t, db, enums.OrderStatusPaymentPending, 49900)
	require.NoError(t, fx.svc.HandleEvent(ctx, failedEvent(order.GatewayIntentID, "pay_NSF", 49900, "insufficient funds")))
	require.NoError(t, fx.svc.HandleEvent(ctx, capturedEvent(order.GatewayIntentID, "pay_RETRY", 49900)))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentFlagged, updated.Status)
	require.NotNil(t, updated.FlagReason)
	assert.Contains(t, *updated.FlagReason, "pay_RETRY")
	assert.Empty(t, fx.invoices.issued, "a flagged capture must not produce an invoice")
	assert.Empty(t, fx.cart.cleared)
}

func TestHandleCapturedReplayAfterFailureIsAcked(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	ctx := context.Background()

	order := seedPendingOrder(t, db, enums.OrderStatusPaymentPending, 49900)
	require.NoError(t, fx.svc.HandleEvent(ctx, failedEvent(order.GatewayIntentID, "pay_NSF", 49900, "insufficient funds")))
	// A redelivered capture for the payment we already recorded stays a
	// duplicate, not a flag.
	require.NoError(t, fx.svc.HandleEvent(ctx, capturedEvent(order.GatewayIntentID, "pay_NSF", 49900)))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentFailed, updated.Status)
}

func TestHandleUnknownEventIsAcked(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)

	event := &Event{EventType: "refund.processed"}
	require.NoError(t, fx.svc.HandleEvent(context.Background(), event))
	assert.Empty(t, fx.invoices.issued)
}

func TestHandleCapturedUnknownOrder(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)

	event := capturedEvent("order_missing", "pay_X", 100)
	err := fx.svc.HandleEvent(context.Background(), event)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeNotFound, coded.Code())
}

func TestHandleEventRejectsPartialPayload(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)

	event := capturedEvent("", "pay_X", 100)
	err := fx.svc.HandleEvent(context.Background(), event)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeValidation, coded.Code())
}

func TestInvoiceFailureDoesNotFailDelivery(t *testing.T) {
	db := setupWebhookTestDB(t)
	fx := newWebhookFixture(t, db)
	fx.invoices.err = assert.AnError
	ctx := context.Background()

	order := seedPendingOrder(t, db, enums.OrderStatusPaymentPending, 49900)
	require.NoError(t, fx.svc.HandleEvent(ctx, capturedEvent(order.GatewayIntentID, "pay_A", 49900)))

	updated, err := fx.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, updated.Status)
}

func TestIdempotencyID(t *testing.T) {
	event := capturedEvent("order_1", "pay_1", 100)
	assert.Equal(t, "payment.captured:pay_1", event.IdempotencyID())

	event.Payload.Payment.Entity.ID = ""
	assert.Equal(t, "payment.captured:order_1", event.IdempotencyID())

	event.Payload.Payment.Entity.OrderID = ""
	assert.Empty(t, event.IdempotencyID())
}
