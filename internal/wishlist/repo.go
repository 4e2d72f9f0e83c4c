package wishlist

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/pagination"
)

// Repository encapsulates wishlist persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddItem inserts a wishlist entry and ignores duplicates.
func (r *Repository) AddItem(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil || productID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	return r.db.WithContext(ctx).
		Exec(`INSERT INTO wishlist_items (id, user_id, product_id, created_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (user_id, product_id) DO NOTHING`, uuid.New(), userID, productID).
		Error
}

// RemoveItem deletes the user-product entry if it exists.
func (r *Repository) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.WishlistItem{}).
		Error
}

// ListItems returns a cursor page of wishlist entries joined with their
// products, newest first.
func (r *Repository) ListItems(ctx context.Context, userID uuid.UUID, params pagination.Params) (*WishlistPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	qb := r.db.WithContext(ctx).
		Table("wishlist_items wi").
		Select("wi.id AS wishlist_id, wi.created_at AS added_at, p.id AS product_id, p.sku, p.name, p.price_paise, p.currency, p.image_url, p.stock_qty, p.active").
		Joins("JOIN products p ON p.id = wi.product_id").
		Where("wi.user_id = ?", userID)
	if cursor != nil {
		qb = qb.Where("(wi.created_at < ?) OR (wi.created_at = ? AND wi.id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []wishlistRow
	err = qb.Order("wi.created_at DESC, wi.id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.AddedAt, ID: last.WishlistID})
	}

	page := &WishlistPage{NextCursor: nextCursor}
	for _, row := range rows {
		page.Items = append(page.Items, WishlistItemView{
			ProductID:  row.ProductID,
			SKU:        row.SKU,
			Name:       row.Name,
			PricePaise: row.PricePaise,
			Currency:   row.Currency,
			ImageURL:   row.ImageURL,
			InStock:    row.StockQty > 0,
			Available:  row.Active,
			AddedAt:    row.AddedAt,
		})
	}
	return page, nil
}
