// Package mailer delivers notifications as email through SendGrid.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/honeynil/RentalOrderService/internal/config"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/observability"
	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendEndpoint = "/v3/mail/send"

type SendGridMailer struct {
	apiKey    string
	host      string
	fromEmail string
	fromName  string
}

// NewSendGridMailer builds a mailer against the public SendGrid API. host
// overrides the API origin when non-empty.
func NewSendGridMailer(cfg config.SendGridConfig, host string) *SendGridMailer {
	return &SendGridMailer{
		apiKey:    cfg.APIKey,
		host:      host,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Notify sends n as a plain-text email.
func (m *SendGridMailer) Notify(ctx context.Context, n models.Notification) error {
	if n.To == "" {
		return fmt.Errorf("%w: notification %s has no recipient address", pkgerrors.ErrInvalidInput, n.Kind)
	}

	message := mail.NewSingleEmailPlainText(
		mail.NewEmail(m.fromName, m.fromEmail),
		n.Subject,
		mail.NewEmail(n.RecipientName, n.To),
		n.Body,
	)

	request := sendgrid.GetRequest(m.apiKey, sendEndpoint, m.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		observability.Notifications.WithLabelValues(string(n.Kind), "error").Inc()
		slog.ErrorContext(ctx, "sendgrid request failed", "kind", n.Kind, "recipient_id", n.RecipientID, "error", err)
		return fmt.Errorf("%w: %v", pkgerrors.ErrNotifierUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		observability.Notifications.WithLabelValues(string(n.Kind), "rejected").Inc()
		slog.ErrorContext(ctx, "sendgrid rejected message", "kind", n.Kind, "status", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("%w: sendgrid status %d", pkgerrors.ErrNotifierUnavailable, resp.StatusCode)
	}

	observability.Notifications.WithLabelValues(string(n.Kind), "sent").Inc()
	slog.InfoContext(ctx, "notification sent", "kind", n.Kind, "recipient_id", n.RecipientID)
	return nil
}
