package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/robojust/storefront-backend/pkg/config"
	"github.com/robojust/storefront-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid default from address is required")
)

// Message is a single outbound email.
type Message struct {
	To        string
	ToName    string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Sender delivers transactional email. Implemented by Client; tests use fakes.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client wraps the SendGrid SDK behind the Sender interface.
type Client struct {
	sg       *sendgrid.Client
	from     *sgmail.Email
	fromAddr string
	logger   *logger.Logger
}

// NewClient validates the SendGrid credentials and returns a Sender.
func NewClient(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}

	return &Client{
		sg:       sendgrid.NewSendClient(apiKey),
		from:     sgmail.NewEmail("", from),
		fromAddr: from,
		logger:   logg,
	}, nil
}

// Send delivers one message. A non-2xx response from SendGrid is an error;
// callers decide whether to retry.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("recipient address is required")
	}
	if msg.Subject == "" {
		return errors.New("subject is required")
	}

	to := sgmail.NewEmail(msg.ToName, msg.To)
	email := sgmail.NewSingleEmail(c.from, msg.Subject, to, msg.PlainBody, msg.HTMLBody)

	resp, err := c.sg.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}

	if c.logger != nil {
		ctx = c.logger.WithField(ctx, "email_to", msg.To)
		c.logger.Info(ctx, "email dispatched")
	}
	return nil
}
