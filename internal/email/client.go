package email

import (
	"context"

	"github.com/resend/resend-go/v2"
	"github.com/saasinvoice/billing/internal/config"
	ierr "github.com/saasinvoice/billing/internal/errors"
)

// Client wraps the resend API. A client without an api key is disabled.
type Client struct {
	client      *resend.Client
	enabled     bool
	fromAddress string
	replyTo     string
}

func NewClient(cfg *config.Configuration) *Client {
	if !cfg.Email.Enabled || cfg.Email.APIKey == "" {
		return &Client{enabled: false}
	}

	return &Client{
		client:      resend.NewClient(cfg.Email.APIKey),
		enabled:     true,
		fromAddress: cfg.Email.FromAddress,
		replyTo:     cfg.Email.ReplyTo,
	}
}

func (c *Client) IsEnabled() bool {
	return c.enabled
}

// Send delivers one message and returns the provider message id
func (c *Client) Send(ctx context.Context, msg *Message) (string, error) {
	if !c.enabled {
		return "", ierr.NewError("email client is disabled").
			WithHint("Email delivery is not configured").
			Mark(ierr.ErrSystem)
	}

	params := &resend.SendEmailRequest{
		From:    c.fromAddress,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if c.replyTo != "" {
		params.ReplyTo = c.replyTo
	}

	sent, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to send email").
			WithReportableDetails(map[string]any{
				"subject": msg.Subject,
			}).
			Mark(ierr.ErrHTTPClient)
	}
	return sent.Id, nil
}
