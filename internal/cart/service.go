package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/internal/products"
	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
)

const maxLineQuantity = 50

// CartLine is one cart entry joined with its catalog snapshot.
type CartLine struct {
	ProductID      uuid.UUID      `json:"product_id"`
	Name           string         `json:"name"`
	SKU            string         `json:"sku"`
	UnitPricePaise int64          `json:"unit_price_paise"`
	Quantity       int            `json:"quantity"`
	TotalPaise     int64          `json:"total_paise"`
	Currency       enums.Currency `json:"currency"`
	ImageURL       *string        `json:"image_url,omitempty"`
}

// CartView is the full cart with its computed total.
type CartView struct {
	Items           []CartLine     `json:"items"`
	TotalPaise      int64          `json:"total_paise"`
	Currency        enums.Currency `json:"currency"`
	RemovedProducts int            `json:"removed_products,omitempty"`
}

// Service exposes cart operations.
type Service interface {
	Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (*CartView, error)
	Get(ctx context.Context, userID uuid.UUID) (*CartView, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type service struct {
	repo     *Repository
	products productFinder
}

// NewService builds the cart service.
func NewService(repo *Repository, productsRepo *products.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo, products: productsRepo}, nil
}

func (s *service) Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if quantity < 1 || quantity > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity must be between 1 and %d", maxLineQuantity))
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.StockQty < quantity {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for requested quantity")
	}

	if err := s.repo.Upsert(ctx, userID, productID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
	}
	return s.Get(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
	}
	return s.Get(ctx, userID)
}

// Get returns the cart joined against the live catalog. Lines whose product
// has been deactivated since it was added are dropped from the view and
// counted in RemovedProducts.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	lines, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	view := &CartView{Currency: enums.CurrencyINR}
	if len(lines) == 0 {
		return view, nil
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	catalog, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	byID := make(map[uuid.UUID]models.Product, len(catalog))
	for _, product := range catalog {
		byID[product.ID] = product
	}

	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			view.RemovedProducts++
			continue
		}
		total := product.PricePaise * int64(line.Quantity)
		view.Items = append(view.Items, CartLine{
			ProductID:      product.ID,
			Name:           product.Name,
			SKU:            product.SKU,
			UnitPricePaise: product.PricePaise,
			Quantity:       line.Quantity,
			TotalPaise:     total,
			Currency:       product.Currency,
			ImageURL:       product.ImageURL,
		})
		view.TotalPaise += total
	}
	return view, nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
