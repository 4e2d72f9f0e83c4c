package razorpaywebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/internal/orders"
	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
	"github.com/robojust/storefront-backend/pkg/logger"
	"github.com/robojust/storefront-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

type invoiceIssuer interface {
	IssueForOrder(ctx context.Context, orderID uuid.UUID) error
}

// ServiceParams bundles the reconciler dependencies.
type ServiceParams struct {
	OrdersRepo        orders.Repository
	TransactionRunner txRunner
	Cart              cartClearer
	Invoices          invoiceIssuer
	Logger            *logger.Logger
	Metrics           *metrics.WebhookMetrics
}

// Service reconciles gateway payment events against local order state. The
// order table is the source of truth; the webhook only reports what the
// gateway observed.
type Service struct {
	ordersRepo orders.Repository
	txRunner   txRunner
	cart       cartClearer
	invoices   invoiceIssuer
	logger     *logger.Logger
	metrics    *metrics.WebhookMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		ordersRepo: params.OrdersRepo,
		txRunner:   params.TransactionRunner,
		cart:       params.Cart,
		invoices:   params.Invoices,
		logger:     params.Logger,
		metrics:    params.Metrics,
	}, nil
}

// HandleEvent processes one verified, deduplicated delivery. A nil return
// means the outcome is durably persisted and the delivery can be acked.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event required")
	}

	started := time.Now()
	eventType, err := event.Type()
	if err != nil {
		// Unknown events are acked so new gateway event types never wedge
		// the delivery queue.
		if s.logger != nil {
			s.logger.Info(ctx, fmt.Sprintf("ignoring gateway event %q", event.EventType))
		}
		return nil
	}
	defer func() {
		s.metrics.ObserveDuration(eventType.String(), time.Since(started))
	}()
	s.metrics.IncReceived(eventType.String())

	payment := event.Payload.Payment.Entity
	if payment.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment entity missing order id")
	}
	if payment.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment entity missing payment id")
	}

	ctx = s.logFields(ctx, eventType, payment)

	switch eventType {
	case enums.GatewayEventPaymentCaptured:
		return s.handleCaptured(ctx, event, payment)
	case enums.GatewayEventPaymentFailed:
		return s.handleFailed(ctx, event, payment)
	default:
		return nil
	}
}

func (s *Service) handleCaptured(ctx context.Context, event *Event, payment PaymentEntity) error {
	var confirmed *models.Order
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)

		order, err := repo.FindByGatewayIntentID(ctx, payment.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no order for gateway intent")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		// Replays of an already-reconciled payment are acked without writes.
		if order.GatewayPaymentID != nil && *order.GatewayPaymentID == payment.ID && order.Status.IsTerminal() {
			s.metrics.IncDuplicate()
			return nil
		}

		idempotencyKey := event.IdempotencyID()

		if mismatch := amountMismatch(order, payment); mismatch != "" {
			return s.flagOrder(ctx, repo, order, payment, idempotencyKey, mismatch)
		}

		err = repo.Transition(ctx, orders.TransitionInput{
			OrderID: order.ID,
			From:    enums.OrderStatusPaymentPending,
			To:      enums.OrderStatusPaymentConfirmed,
			Source:  enums.StatusSourceWebhook,
			Updates: map[string]any{
				"gateway_payment_id": payment.ID,
				"idempotency_key":    idempotencyKey,
				"confirmed_at":       time.Now().UTC(),
			},
		})
		if err != nil {
			if errors.Is(err, orders.ErrStaleStatus) {
				return s.resolveStaleCapture(ctx, repo, order.ID, payment, idempotencyKey)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}

		confirmed = order
		return nil
	})
	if err != nil {
		return err
	}

	if confirmed != nil {
		s.runSideEffects(ctx, confirmed)
	}
	return nil
}

func (s *Service) handleFailed(ctx context.Context, event *Event, payment PaymentEntity) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)

		order, err := repo.FindByGatewayIntentID(ctx, payment.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no order for gateway intent")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status.IsTerminal() {
			s.metrics.IncDuplicate()
			return nil
		}

		reason := payment.ErrorDescription
		if reason == "" {
			reason = "payment failed at gateway"
		}

		err = repo.Transition(ctx, orders.TransitionInput{
			OrderID: order.ID,
			From:    order.Status,
			To:      enums.OrderStatusPaymentFailed,
			Source:  enums.StatusSourceWebhook,
			Updates: map[string]any{
				"gateway_payment_id": payment.ID,
				"idempotency_key":    event.IdempotencyID(),
				"flag_reason":        reason,
			},
		})
		if err != nil {
			if errors.Is(err, orders.ErrStaleStatus) {
				s.metrics.IncDuplicate()
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail order")
		}
		return nil
	})
}

// flagOrder parks a captured payment the order cannot absorb, whether the
// amounts disagree or the order already settled. Flagged orders are never
// auto-confirmed; they wait for manual review.
func (s *Service) flagOrder(ctx context.Context, repo orders.Repository, order *models.Order, payment PaymentEntity, idempotencyKey, reason string) error {
	s.metrics.IncAmountMismatch()
	if s.logger != nil {
		s.logger.Security(ctx, fmt.Sprintf("flagging order %s: %s", order.ID, reason))
	}

	err := repo.Transition(ctx, orders.TransitionInput{
		OrderID: order.ID,
		From:    order.Status,
		To:      enums.OrderStatusPaymentFlagged,
		Source:  enums.StatusSourceWebhook,
		Updates: map[string]any{
			"gateway_payment_id": payment.ID,
			"idempotency_key":    idempotencyKey,
			"flag_reason":        reason,
		},
	})
	if err != nil {
		if errors.Is(err, orders.ErrStaleStatus) {
			s.metrics.IncDuplicate()
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag order")
	}
	return nil
}

// resolveStaleCapture handles a capture whose CAS lost. The usual cause is a
// redelivery that slipped past the Redis guard; a capture racing a user
// cancellation is flagged for manual refund instead.
func (s *Service) resolveStaleCapture(ctx context.Context, repo orders.Repository, orderID uuid.UUID, payment PaymentEntity, idempotencyKey string) error {
	current, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}

	switch current.Status {
	case enums.OrderStatusPaymentConfirmed, enums.OrderStatusPaymentFlagged, enums.OrderStatusPaymentFailed:
		// Only a redelivery of the same payment is a duplicate. Razorpay
		// retries on a failed payment mint a fresh payment id, so a capture
		// the order does not know about means money moved after the order
		// settled. Park it for manual review.
		if current.GatewayPaymentID != nil && *current.GatewayPaymentID == payment.ID {
			s.metrics.IncDuplicate()
			return nil
		}
		return s.flagOrder(ctx, repo, current, payment, idempotencyKey,
			fmt.Sprintf("payment %s captured after order settled as %s", payment.ID, current.Status))
	case enums.OrderStatusCancelled:
		return s.flagOrder(ctx, repo, current, payment, idempotencyKey,
			"payment captured for cancelled order")
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in unexpected status %s", current.Status))
	}
}

// runSideEffects fires the post-confirmation work. Failures are logged and
// never affect the webhook ack; the payment state is already durable.
func (s *Service) runSideEffects(ctx context.Context, order *models.Order) {
	if s.cart != nil {
		if err := s.cart.Clear(ctx, order.UserID); err != nil && s.logger != nil {
			s.logger.Error(ctx, "clear cart after confirmation", err)
		}
	}
	if s.invoices != nil {
		if err := s.invoices.IssueForOrder(ctx, order.ID); err != nil && s.logger != nil {
			s.logger.Error(ctx, "issue invoice after confirmation", err)
		}
	}
}

func (s *Service) logFields(ctx context.Context, eventType enums.GatewayEventType, payment PaymentEntity) context.Context {
	if s.logger == nil {
		return ctx
	}
	ctx = s.logger.WithGatewayEvent(ctx, eventType.String())
	return s.logger.WithFields(ctx, map[string]any{
		"gateway_payment_id": payment.ID,
		"gateway_order_id":   payment.OrderID,
	})
}

func amountMismatch(order *models.Order, payment PaymentEntity) string {
	if payment.Amount != order.AmountTotalPaise {
		return fmt.Sprintf("gateway reported %d paise, order total is %d paise", payment.Amount, order.AmountTotalPaise)
	}
	if payment.Currency != "" && payment.Currency != order.Currency.String() {
		return fmt.Sprintf("gateway reported currency %s, order is %s", payment.Currency, order.Currency)
	}
	return ""
}
