package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
	"github.com/robojust/storefront-backend/pkg/pagination"
	"github.com/robojust/storefront-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
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
);`
	orderItemsTable := `
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
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	// Same unique indexes the goose migration creates, so constraint
	// behavior matches production.
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_gateway_intent_id ON orders (gateway_intent_id) WHERE gateway_intent_id <> ''`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_gateway_payment_id ON orders (gateway_payment_id)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_idempotency_key ON orders (idempotency_key)`).Error)
	require.NoError(t, db.Exec(orderItemsTable).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:               uuid.New(),
		UserID:           userID,
		Status:           status,
		Currency:         enums.CurrencyINR,
		AmountTotalPaise: 49900,
		ReceiptID:        "receipt_order_1700000000",
		GatewayIntentID:  "order_" + uuid.NewString()[:8],
		StatusHistory: types.StatusHistory{}.
			Append(enums.OrderStatusCreated.String(), enums.StatusSourceCheckout.String(), createdAt),
		Items: []models.OrderItem{
			{
				ID:             uuid.New(),
				Name:           "Walnut Desk Organizer",
				SKU:            "WD-ORG-01",
				UnitPricePaise: 24950,
				Quantity:       2,
				TotalPaise:     49900,
			},
		},
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestCreateAndFindOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, uuid.New(), enums.OrderStatusPaymentPending, time.Now().UTC())

	found, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)
	assert.Equal(t, enums.OrderStatusPaymentPending, found.Status)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "WD-ORG-01", found.Items[0].SKU)

	byIntent, err := repo.FindByGatewayIntentID(ctx, seeded.GatewayIntentID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, byIntent.ID)
}

func TestCreateAllowsManyOrdersAwaitingIntent(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	// Checkout commits the order row before the gateway call, so several
	// rows can hold an empty intent id at once.
	preIntent := func() *models.Order {
		return &models.Order{
			ID:               uuid.New(),
			UserID:           uuid.New(),
			Status:           enums.OrderStatusCreated,
			Currency:         enums.CurrencyINR,
			AmountTotalPaise: 49900,
			ReceiptID:        "receipt_" + uuid.NewString(),
			StatusHistory: types.StatusHistory{}.
				Append(enums.OrderStatusCreated.String(), enums.StatusSourceCheckout.String(), time.Now().UTC()),
		}
	}

	_, err := repo.Create(ctx, preIntent())
	require.NoError(t, err)
	_, err = repo.Create(ctx, preIntent())
	require.NoError(t, err)

	taken := preIntent()
	taken.GatewayIntentID = "order_DUP1"
	_, err = repo.Create(ctx, taken)
	require.NoError(t, err)

	dup := preIntent()
	dup.GatewayIntentID = "order_DUP1"
	_, err = repo.Create(ctx, dup)
	require.Error(t, err)
}

func TestTransitionAppliesGuardedUpdate(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPaymentPending, time.Now().UTC())

	paymentID := "pay_ABC123"
	now := time.Now().UTC()
	err := repo.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		From:    enums.OrderStatusPaymentPending,
		To:      enums.OrderStatusPaymentConfirmed,
		Source:  enums.StatusSourceWebhook,
		Updates: map[string]any{
			"gateway_payment_id": paymentID,
			"confirmed_at":       now,
		},
	})
	require.NoError(t, err)

	updated, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, updated.Status)
	require.NotNil(t, updated.GatewayPaymentID)
	assert.Equal(t, paymentID, *updated.GatewayPaymentID)
	require.NotNil(t, updated.ConfirmedAt)

	last, ok := updated.StatusHistory.Last()
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed.String(), last.Status)
	assert.Equal(t, enums.StatusSourceWebhook.String(), last.Source)
	assert.Len(t, updated.StatusHistory, 2)
}

func TestTransitionRejectsStaleStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPaymentPending, time.Now().UTC())

	first := repo.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		From:    enums.OrderStatusPaymentPending,
		To:      enums.OrderStatusPaymentConfirmed,
		Source:  enums.StatusSourceWebhook,
	})
	require.NoError(t, first)

	// The losing writer expected payment_pending but the order already moved.
	second := repo.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		From:    enums.OrderStatusPaymentPending,
		To:      enums.OrderStatusPaymentFailed,
		Source:  enums.StatusSourceWebhook,
	})
	require.ErrorIs(t, second, ErrStaleStatus)

	updated, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentConfirmed, updated.Status)
	assert.Len(t, updated.StatusHistory, 2)
}

func TestTransitionMissingOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	err := repo.Transition(context.Background(), TransitionInput{
		OrderID: uuid.New(),
		From:    enums.OrderStatusPaymentPending,
		To:      enums.OrderStatusPaymentConfirmed,
		Source:  enums.StatusSourceWebhook,
	})
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestListByUserPaginates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedOrder(t, db, userID, enums.OrderStatusPaymentConfirmed, base.Add(time.Duration(i)*time.Hour))
	}
	seedOrder(t, db, uuid.New(), enums.OrderStatusPaymentConfirmed, base)

	page1, err := repo.ListByUser(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1.Orders, 2)
	require.NotEmpty(t, page1.NextCursor)
	assert.True(t, page1.Orders[0].CreatedAt.After(page1.Orders[1].CreatedAt))
	assert.Equal(t, 2, page1.Orders[0].TotalItems)

	page2, err := repo.ListByUser(ctx, userID, pagination.Params{Limit: 2, Cursor: page1.NextCursor})
	require.NoError(t, err)
	require.Len(t, page2.Orders, 1)
	assert.Empty(t, page2.NextCursor)
}
