package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/internal/cart"
	"github.com/robojust/storefront-backend/internal/orders"
	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
	"github.com/robojust/storefront-backend/pkg/logger"
	"github.com/robojust/storefront-backend/pkg/razorpay"
	"github.com/robojust/storefront-backend/pkg/types"
)

type gateway interface {
	CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Intent, error)
	VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	KeyID() string
}

type cartReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.CartView, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams carries the dependencies for the payments service.
type ServiceParams struct {
	OrdersRepo        orders.Repository
	TransactionRunner txRunner
	Cart              cartReader
	Gateway           gateway
	Logger            *logger.Logger
}

// Service opens payment intents at the gateway and answers the client's
// post-checkout verification callback.
type Service struct {
	ordersRepo orders.Repository
	txRunner   txRunner
	cart       cartReader
	gateway    gateway
	logger     *logger.Logger
}

// NewService validates dependencies and constructs the payments service.
func NewService(params ServiceParams) (*Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart reader required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	return &Service{
		ordersRepo: params.OrdersRepo,
		txRunner:   params.TransactionRunner,
		cart:       params.Cart,
		gateway:    params.Gateway,
		logger:     params.Logger,
	}, nil
}

// CreateOrder snapshots the user's cart into an order row, opens a matching
// payment intent at the gateway, and moves the order to payment_pending. The
// order row is committed before the gateway call so a webhook that races the
// response always finds it.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	amountPaise, err := majorToPaise(req.Amount.String())
	if err != nil {
		return nil, err
	}

	currency := enums.CurrencyINR
	if req.Currency != "" {
		currency, err = enums.ParseCurrency(req.Currency)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
		}
	}

	view, err := s.cart.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(view.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if view.RemovedProducts > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart contains products that are no longer available")
	}
	if currency != view.Currency {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency does not match cart")
	}
	if amountPaise != view.TotalPaise {
		if s.logger != nil {
			s.logger.Security(s.logger.WithUserID(ctx, userID.String()),
				fmt.Sprintf("checkout amount %d paise does not match cart total %d paise", amountPaise, view.TotalPaise))
		}
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "amount does not match cart total")
	}

	now := time.Now().UTC()
	orderID := uuid.New()
	order := &models.Order{
		ID:               orderID,
		UserID:           userID,
		Status:           enums.OrderStatusCreated,
		Currency:         currency,
		AmountTotalPaise: amountPaise,
		ReceiptID:        receiptFor(orderID),
		StatusHistory: (types.StatusHistory{}).
			Append(enums.OrderStatusCreated.String(), enums.StatusSourceCheckout.String(), now),
		Items: snapshotItems(view.Items),
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		_, createErr := s.ordersRepo.WithTx(tx).Create(ctx, order)
		return createErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist order")
	}

	ctx = s.withOrderLog(ctx, order.ID)
	intent, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderParams{
		AmountPaise: amountPaise,
		Currency:    currency.String(),
		ReceiptID:   order.ReceiptID,
		Notes:       map[string]string{"order_id": order.ID.String()},
	})
	if err != nil {
		// Order stays in created; the user can retry checkout or cancel.
		return nil, err
	}

	err = s.ordersRepo.Transition(ctx, orders.TransitionInput{
		OrderID: order.ID,
		From:    enums.OrderStatusCreated,
		To:      enums.OrderStatusPaymentPending,
		Source:  enums.StatusSourceCheckout,
		Updates: map[string]any{"gateway_intent_id": intent.ID},
	})
	if err != nil {
		if errors.Is(err, orders.ErrStaleStatus) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed before checkout completed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach gateway intent")
	}

	if s.logger != nil {
		s.logger.Info(ctx, fmt.Sprintf("payment intent %s opened for %d paise", intent.ID, amountPaise))
	}

	return &CreateOrderResponse{
		IntentID:    intent.ID,
		AmountPaise: amountPaise,
		Currency:    currency.String(),
		OrderID:     order.ID,
		ReceiptID:   order.ReceiptID,
		KeyID:       s.gateway.KeyID(),
	}, nil
}

// VerifyPayment checks the checkout callback signature and reports the
// durably recorded order status. It never mutates payment state; the webhook
// reconciler owns confirmation.
func (s *Service) VerifyPayment(ctx context.Context, userID uuid.UUID, req VerifyPaymentRequest) (*VerifyPaymentResponse, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id, payment id and signature are required")
	}

	if !s.gateway.VerifyCheckoutSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		if s.logger != nil {
			s.logger.Security(s.logger.WithUserID(ctx, userID.String()),
				fmt.Sprintf("checkout signature mismatch for gateway order %s", req.RazorpayOrderID))
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature verification failed")
	}

	order, err := s.ordersRepo.FindByGatewayIntentID(ctx, req.RazorpayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order for verification")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	return &VerifyPaymentResponse{
		OrderID:  order.ID,
		Status:   order.Status,
		Verified: true,
	}, nil
}

func (s *Service) withOrderLog(ctx context.Context, orderID uuid.UUID) context.Context {
	if s.logger == nil {
		return ctx
	}
	return s.logger.WithOrderID(ctx, orderID.String())
}

// receiptFor derives the gateway receipt from the order id. Razorpay caps
// receipts at 40 characters and deduplicates on them, so a wall-clock receipt
// would collide when two checkouts land in the same second.
func receiptFor(orderID uuid.UUID) string {
	return "receipt_" + strings.ReplaceAll(orderID.String(), "-", "")
}

// majorToPaise converts a major-unit amount string into integer paise. The
// conversion happens exactly once, here at the API boundary; everything past
// this point works in paise.
func majorToPaise(raw string) (int64, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a number")
	}
	if !amount.IsPositive() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	paise := amount.Mul(decimal.NewFromInt(100))
	if !paise.IsInteger() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount has sub-paise precision")
	}
	return paise.IntPart(), nil
}

func snapshotItems(lines []cart.CartLine) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		productID := line.ProductID
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			ProductID:      &productID,
			Name:           line.Name,
			SKU:            line.SKU,
			UnitPricePaise: line.UnitPricePaise,
			Quantity:       line.Quantity,
			TotalPaise:     line.TotalPaise,
		})
	}
	return items
}
