package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/internal/products"
	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	productsTable := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  price_paise INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  image_url TEXT,
  stock_qty INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartTable := `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_user_product ON cart_items (user_id, product_id);`
	require.NoError(t, db.Exec(productsTable).Error)
	require.NoError(t, db.Exec(cartTable).Error)
	return db
}

func seedCatalogProduct(t *testing.T, db *gorm.DB, pricePaise int64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:         uuid.New(),
		SKU:        uuid.NewString()[:8],
		Name:       "Walnut Desk Organizer",
		PricePaise: pricePaise,
		Currency:   enums.CurrencyINR,
		StockQty:   stock,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func newCartService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), products.NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestAddAndGetCart(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	product := seedCatalogProduct(t, db, 24950, 10)

	view, err := svc.Add(ctx, userID, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(49900), view.TotalPaise)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestAddReplacesQuantity(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	product := seedCatalogProduct(t, db, 10000, 10)

	_, err := svc.Add(ctx, userID, product.ID, 2)
	require.NoError(t, err)
	view, err := svc.Add(ctx, userID, product.ID, 5)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, int64(50000), view.TotalPaise)
}

func TestAddRejectsInsufficientStock(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	product := seedCatalogProduct(t, db, 10000, 1)

	_, err := svc.Add(ctx, uuid.New(), product.ID, 3)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeConflict, coded.Code())
}

func TestGetDropsDeactivatedProducts(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	keep := seedCatalogProduct(t, db, 10000, 10)
	gone := seedCatalogProduct(t, db, 5000, 10)

	_, err := svc.Add(ctx, userID, keep.ID, 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, userID, gone.ID, 1)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", gone.ID).Update("active", false).Error)

	view, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, keep.ID, view.Items[0].ProductID)
	assert.Equal(t, 1, view.RemovedProducts)
	assert.Equal(t, int64(10000), view.TotalPaise)
}

func TestRemoveAndClear(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	first := seedCatalogProduct(t, db, 10000, 10)
	second := seedCatalogProduct(t, db, 5000, 10)

	_, err := svc.Add(ctx, userID, first.ID, 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, userID, second.ID, 1)
	require.NoError(t, err)

	view, err := svc.Remove(ctx, userID, first.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	require.NoError(t, svc.Clear(ctx, userID))
	view, err = svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.TotalPaise)
}
