package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/pkg/db"
	"github.com/robojust/storefront-backend/pkg/db/models"
	"github.com/robojust/storefront-backend/pkg/enums"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
	"github.com/robojust/storefront-backend/pkg/logger"
	"github.com/robojust/storefront-backend/pkg/mail"
)

const (
	defaultSendAttempts = 3
	defaultSendBackoff  = 500 * time.Millisecond
)

type orderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type invoiceStore interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// ServiceParams carries the dependencies for the invoice service.
type ServiceParams struct {
	Repo   invoiceStore
	Orders orderFinder
	Users  userFinder
	Mailer mail.Sender
	Logger *logger.Logger

	// SendAttempts and SendBackoff tune email delivery retries. Zero values
	// fall back to the defaults.
	SendAttempts uint64
	SendBackoff  time.Duration
}

// Service issues invoices for confirmed payments and emails them to the
// buyer. Issuance is at-most-once per order: the invoice row is created
// before any email leaves, and the unique order index swallows replays.
type Service struct {
	repo         invoiceStore
	orders       orderFinder
	users        userFinder
	mailer       mail.Sender
	logger       *logger.Logger
	sendAttempts uint64
	sendBackoff  time.Duration
}

// NewService validates dependencies and constructs the invoice service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.Mailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mail sender required")
	}
	if params.SendAttempts == 0 {
		params.SendAttempts = defaultSendAttempts
	}
	if params.SendBackoff <= 0 {
		params.SendBackoff = defaultSendBackoff
	}
	return &Service{
		repo:         params.Repo,
		orders:       params.Orders,
		users:        params.Users,
		mailer:       params.Mailer,
		logger:       params.Logger,
		sendAttempts: params.SendAttempts,
		sendBackoff:  params.SendBackoff,
	}, nil
}

// IssueForOrder creates the invoice for a confirmed order and emails it.
// Calling it again for the same order is a no-op once the row exists.
func (s *Service) IssueForOrder(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order for invoice")
	}
	if order.Status != enums.OrderStatusPaymentConfirmed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice requires a confirmed payment")
	}

	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load buyer for invoice")
	}

	now := time.Now().UTC()
	invoice := &models.Invoice{
		ID:             uuid.New(),
		OrderID:        order.ID,
		IdempotencyKey: "invoice:" + order.ID.String(),
		Number:         newInvoiceNumber(now),
		AmountPaise:    order.AmountTotalPaise,
		Currency:       order.Currency,
		EmailedTo:      user.Email,
		Status:         enums.InvoiceStatusPending,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		if db.IsUniqueViolation(err, "") {
			if s.logger != nil {
				s.logger.Info(s.logger.WithOrderID(ctx, order.ID.String()), "invoice already issued")
			}
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist invoice")
	}

	return s.deliver(ctx, invoice, order, user)
}

func (s *Service) deliver(ctx context.Context, invoice *models.Invoice, order *models.Order, user *models.User) error {
	msg := mail.Message{
		To:        user.Email,
		ToName:    user.Name,
		Subject:   fmt.Sprintf("Invoice %s for your order", invoice.Number),
		PlainBody: invoiceBody(invoice, order, user),
	}

	backoff := retry.WithMaxRetries(s.sendAttempts-1, retry.NewExponential(s.sendBackoff))
	sendErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.mailer.Send(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if sendErr != nil {
		if markErr := s.repo.MarkFailed(ctx, invoice.ID, sendErr.Error()); markErr != nil && s.logger != nil {
			s.logger.Error(ctx, "record invoice delivery failure", markErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, sendErr, "send invoice email")
	}

	if err := s.repo.MarkSent(ctx, invoice.ID, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record invoice delivery")
	}
	if s.logger != nil {
		s.logger.Info(s.logger.WithOrderID(ctx, order.ID.String()), fmt.Sprintf("invoice %s sent", invoice.Number))
	}
	return nil
}

func newInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}

func invoiceBody(invoice *models.Invoice, order *models.Order, user *models.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", user.Name)
	fmt.Fprintf(&b, "Thanks for your purchase. Payment for order %s is confirmed.\n\n", order.ReceiptID)
	fmt.Fprintf(&b, "Invoice number: %s\n", invoice.Number)
	fmt.Fprintf(&b, "Amount paid: %s %.2f\n\n", invoice.Currency, float64(invoice.AmountPaise)/100)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "  %dx %s (%s)\n", item.Quantity, item.Name, item.SKU)
	}
	b.WriteString("\nRobojust Organics\n")
	return b.String()
}
