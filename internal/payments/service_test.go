package payments

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/internal/cart"
	"github.com/robojust/storefront-backend/internal/orders"
	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
	"github.com/robojust/storefront-backend/pkg/razorpay"
)

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeCart struct {
	view *cart.CartView
	err  error
}

func (f *fakeCart) Get(ctx context.Context, userID uuid.UUID) (*cart.CartView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.view, nil
}

type fakeGateway struct {
	intent     *razorpay.Intent
	createErr  error
	lastParams razorpay.CreateOrderParams
	sigValid   bool
}

func (f *fakeGateway) CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Intent, error) {
	f.lastParams = params
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.intent, nil
}

func (f *fakeGateway) VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return f.sigValid
}

func (f *fakeGateway) KeyID() string { return "rzp_test_fake" }

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
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

func testCartView() *cart.CartView {
	return &cart.CartView{
		Items: []cart.CartLine{
			{
				ProductID:      uuid.New(),
				Name:           "Organic Jaggery 500g",
				SKU:            "JAG-500",
				UnitPricePaise: 12500,
				Quantity:       2,
				TotalPaise:     25000,
				Currency:       enums.CurrencyINR,
			},
			{
				ProductID:      uuid.New(),
				Name:           "Cold-Pressed Groundnut Oil 1L",
				SKU:            "GNO-1L",
				UnitPricePaise: 64950,
				Quantity:       1,
				TotalPaise:     64950,
				Currency:       enums.CurrencyINR,
			},
		},
		TotalPaise: 89950,
		Currency:   enums.CurrencyINR,
	}
}

type paymentsFixture struct {
	svc     *Service
	repo    orders.Repository
	cart    *fakeCart
	gateway *fakeGateway
	db      *gorm.DB
}

func newPaymentsFixture(t *testing.T) *paymentsFixture {
	t.Helper()

	db := setupPaymentsTestDB(t)
	repo := orders.NewRepository(db)
	cartStub := &fakeCart{view: testCartView()}
	gw := &fakeGateway{
		intent: &razorpay.Intent{
			ID:          "order_INT123",
			AmountPaise: 89950,
			Currency:    "INR",
		},
		sigValid: true,
	}
	svc, err := NewService(ServiceParams{
		OrdersRepo:        repo,
		TransactionRunner: passthroughTxRunner{},
		Cart:              cartStub,
		Gateway:           gw,
	})
	require.NoError(t, err)
	return &paymentsFixture{svc: svc, repo: repo, cart: cartStub, gateway: gw, db: db}
}

func amount(raw string) json.Number { return json.Number(raw) }

func TestCreateOrderOpensIntent(t *testing.T) {
	fx := newPaymentsFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	resp, err := fx.svc.CreateOrder(ctx, userID, CreateOrderRequest{Amount: amount("899.50"), Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, "order_INT123", resp.IntentID)
	assert.Equal(t, int64(89950), resp.AmountPaise)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test_fake", resp.KeyID)
	assert.Equal(t, "receipt_"+strings.ReplaceAll(resp.OrderID.String(), "-", ""), resp.ReceiptID)

	assert.Equal(t, int64(89950), fx.gateway.lastParams.AmountPaise)
	assert.Equal(t, resp.OrderID.String(), fx.gateway.lastParams.Notes["order_id"])

	order, err := fx.repo.FindByID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentPending, order.Status)
	assert.Equal(t, "order_INT123", order.GatewayIntentID)
	assert.Equal(t, userID, order.UserID)
	require.Len(t, order.Items, 2)
	skus := []string{order.Items[0].SKU, order.Items[1].SKU}
	assert.ElementsMatch(t, []string{"JAG-500", "GNO-1L"}, skus)
	assert.Len(t, order.StatusHistory, 2)
}

func TestCreateOrderReceiptsAreUniquePerOrder(t *testing.T) {
	fx := newPaymentsFixture(t)
	ctx := context.Background()

	// Two checkouts inside the same wall-clock second must still present
	// distinct receipts to the gateway, which deduplicates on them.
	first, err := fx.svc.CreateOrder(ctx, uuid.New(), CreateOrderRequest{Amount: amount("899.50")})
	require.NoError(t, err)

	fx.gateway.intent = &razorpay.Intent{ID: "order_INT124", AmountPaise: 89950, Currency: "INR"}
	second, err := fx.svc.CreateOrder(ctx, uuid.New(), CreateOrderRequest{Amount: amount("899.50")})
	require.NoError(t, err)

	assert.NotEqual(t, first.ReceiptID, second.ReceiptID)
	assert.LessOrEqual(t, len(first.ReceiptID), 40, "gateway caps receipts at 40 characters")
}

func TestCreateOrderRejectsAmountMismatch(t *testing.T) {
	fx := newPaymentsFixture(t)

	_, err := fx.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderRequest{Amount: amount("899.49")})
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeAmountMismatch, coded.Code())

	var count int64
	require.NoError(t, fx.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "a rejected checkout must not leave an order behind")
}

func TestCreateOrderAmountValidation(t *testing.T) {
	fx := newPaymentsFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	cases := []struct {
		name   string
		amount string
	}{
		{name: "not a number", amount: "abc"},
		{name: "zero", amount: "0"},
		{name: "negative", amount: "-10"},
		{name: "sub paise precision", amount: "899.505"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.CreateOrder(ctx, userID, CreateOrderRequest{Amount: amount(tc.amount)})
			coded := pkgerrors.As(err)
			require.NotNil(t, coded)
			assert.Equal(t, pkgerrors.CodeValidation, coded.Code())
		})
	}
}

func TestCreateOrderRejectsEmptyCart(t *testing.T) {
	fx := newPaymentsFixture(t)
	fx.cart.view = &cart.CartView{Currency: enums.CurrencyINR}

	_, err := fx.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderRequest{Amount: amount("10")})
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeValidation, coded.Code())
}

func TestCreateOrderRejectsStaleCart(t *testing.T) {
	fx := newPaymentsFixture(t)
	fx.cart.view.RemovedProducts = 1

	_, err := fx.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderRequest{Amount: amount("899.50")})
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeConflict, coded.Code())
}

func TestCreateOrderGatewayFailureLeavesOrderCreated(t *testing.T) {
	fx := newPaymentsFixture(t)
	fx.gateway.createErr = pkgerrors.New(pkgerrors.CodeDependency, "gateway unreachable")
	ctx := context.Background()
	userID := uuid.New()

	_, err := fx.svc.CreateOrder(ctx, userID, CreateOrderRequest{Amount: amount("899.50")})
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeDependency, coded.Code())

	var order models.Order
	require.NoError(t, fx.db.Where("user_id = ?", userID).First(&order).Error)
	assert.Equal(t, enums.OrderStatusCreated, order.Status)
	assert.Empty(t, order.GatewayIntentID)
}

func TestVerifyPaymentReportsStatus(t *testing.T) {
	fx := newPaymentsFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	resp, err := fx.svc.CreateOrder(ctx, userID, CreateOrderRequest{Amount: amount("899.50")})
	require.NoError(t, err)

	verify, err := fx.svc.VerifyPayment(ctx, userID, VerifyPaymentRequest{
		RazorpayOrderID:   resp.IntentID,
		RazorpayPaymentID: "pay_ABC",
		RazorpaySignature: "sig",
	})
	require.NoError(t, err)
	assert.True(t, verify.Verified)
	assert.Equal(t, resp.OrderID, verify.OrderID)
	assert.Equal(t, enums.OrderStatusPaymentPending, verify.Status)
}

func TestVerifyPaymentRejectsBadSignature(t *testing.T) {
	fx := newPaymentsFixture(t)
	fx.gateway.sigValid = false

	_, err := fx.svc.VerifyPayment(context.Background(), uuid.New(), VerifyPaymentRequest{
		RazorpayOrderID:   "order_X",
		RazorpayPaymentID: "pay_X",
		RazorpaySignature: "forged",
	})
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeUnauthorized, coded.Code())
}

func TestVerifyPaymentHidesForeignOrders(t *testing.T) {
	fx := newPaymentsFixture(t)
	ctx := context.Background()

	resp, err := fx.svc.CreateOrder(ctx, uuid.New(), CreateOrderRequest{Amount: amount("899.50")})
	require.NoError(t, err)

	_, err = fx.svc.VerifyPayment(ctx, uuid.New(), VerifyPaymentRequest{
		RazorpayOrderID:   resp.IntentID,
		RazorpayPaymentID: "pay_ABC",
		RazorpaySignature: "sig",
	})
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeNotFound, coded.Code())
}

func TestVerifyPaymentUnknownIntent(t *testing.T) {
	fx := newPaymentsFixture(t)

	_, err := fx.svc.VerifyPayment(context.Background(), uuid.New(), VerifyPaymentRequest{
		RazorpayOrderID:   "order_missing",
		RazorpayPaymentID: "pay_X",
		RazorpaySignature: "sig",
	})
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeNotFound, coded.Code())
}
