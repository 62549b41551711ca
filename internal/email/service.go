package email

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/saasinvoice/billing/internal/logger"
)

//go:embed templates/*
var templates embed.FS

// Service renders and sends transactional emails
type Service struct {
	client *Client
	logger *logger.Logger
}

func NewService(client *Client, logger *logger.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
	}
}

// SendPaymentConfirmation is skipped silently when email is disabled
func (s *Service) SendPaymentConfirmation(ctx context.Context, data *PaymentConfirmation) error {
	if !s.client.IsEnabled() {
		s.logger.Debugw("email disabled, skipping payment confirmation",
			"invoice_number", data.InvoiceNumber,
		)
		return nil
	}

	msg, err := BuildPaymentConfirmation(data)
	if err != nil {
		return err
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		s.logger.Errorw("failed to send payment confirmation",
			"error", err,
			"invoice_number", data.InvoiceNumber,
		)
		return err
	}

	s.logger.Infow("payment confirmation sent",
		"message_id", id,
		"invoice_number", data.InvoiceNumber,
	)
	return nil
}

// BuildPaymentConfirmation renders the confirmation templates
func BuildPaymentConfirmation(data *PaymentConfirmation) (*Message, error) {
	values := map[string]interface{}{
		"customer_name":  data.CustomerName,
		"invoice_number": data.InvoiceNumber,
		"amount":         data.Amount,
		"paid_at":        data.PaidAt,
	}

	html, err := render("templates/payment_confirmation.html", values)
	if err != nil {
		return nil, err
	}
	text, err := render("templates/payment_confirmation.txt", values)
	if err != nil {
		return nil, err
	}

	return &Message{
		To:      data.To,
		Subject: fmt.Sprintf("Payment received for invoice %s", data.InvoiceNumber),
		HTML:    html,
		Text:    text,
	}, nil
}

func render(path string, data map[string]interface{}) (string, error) {
	content, err := templates.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return replacePlaceholders(string(content), data), nil
}

func replacePlaceholders(template string, data map[string]interface{}) string {
	result := template
	for key, value := range data {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{%s}}", key), fmt.Sprintf("%v", value))
	}
	return result
}

// ExtractNameFromEmail returns the local part of an address, e.g.
// "john.doe@example.com" -> "john.doe"
func ExtractNameFromEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "there"
}
