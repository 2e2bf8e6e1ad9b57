package internal

import (
	"context"
	"embed"
	"html/template"

	"github.com/go-faster/errors"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/DrGermanius/bookstore/internal/model"
)

const orderConfirmationSubject = "Your bookstore order"

//go:embed templates/*.html
var templatesFS embed.FS

var orderConfirmationTemplate = template.Must(template.ParseFS(templatesFS, "templates/order_confirmation.html"))

type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "smtp client")
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) SendOrderConfirmation(ctx context.Context, to model.Contact, data model.OrderConfirmation) error {
	msg, err := orderConfirmationMessage(m.from, to, data)
	if err != nil {
		return err
	}

	if err = m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, "send order confirmation")
	}
	return nil
}

func orderConfirmationMessage(from string, to model.Contact, data model.OrderConfirmation) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, errors.Wrap(err, "from address")
	}
	if err := msg.AddToFormat(to.Name, to.Email); err != nil {
		return nil, errors.Wrap(err, "to address")
	}
	msg.Subject(orderConfirmationSubject)

	if err := msg.SetBodyHTMLTemplate(orderConfirmationTemplate, data); err != nil {
		return nil, errors.Wrap(err, "render order confirmation")
	}
	return msg, nil
}

// LogMailer stands in for SMTP in development.
type LogMailer struct {
	logger *zap.SugaredLogger
}

func NewLogMailer(logger *zap.SugaredLogger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOrderConfirmation(_ context.Context, to model.Contact, data model.OrderConfirmation) error {
	m.logger.Infow("order confirmation",
		"to", to.Email,
		"claimCode", data.ClaimCode,
		"total", data.Total.String(),
		"discount", data.Discount.String(),
	)
	return nil
}
