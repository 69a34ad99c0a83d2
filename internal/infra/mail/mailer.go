// Package mail delivers one-time codes and security notices over SMTP.
// Without SMTP settings it degrades to structured log output so local
// environments work with no mail server.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/fx"

	"nutriauth/config"
	"nutriauth/internal/domain/service"
	"nutriauth/internal/errors"
)

// Params defines the required parameters
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// smtpMailer implements CodeDelivery and AlertDelivery over SMTP.
type smtpMailer struct {
	client *gomail.Client
	from   string
	logger *slog.Logger
}

// logMailer is the fallback when SMTP is not configured. It records that a
// delivery would have happened without exposing the code itself.
type logMailer struct {
	logger *slog.Logger
}

// NewCodeDelivery builds the code delivery service from configuration.
func NewCodeDelivery(params Params) (service.CodeDelivery, error) {
	mailer, err := newMailer(params)
	if err != nil {
		return nil, err
	}

	return mailer, nil
}

// NewAlertDelivery builds the security alert service from configuration.
func NewAlertDelivery(params Params) (service.AlertDelivery, error) {
	mailer, err := newMailer(params)
	if err != nil {
		return nil, err
	}

	return mailer, nil
}

// deliverer is the common surface of both mailer implementations.
type deliverer interface {
	service.CodeDelivery
	service.AlertDelivery
}

func newMailer(params Params) (deliverer, error) {
	smtp := params.Config.SMTP
	if smtp == nil || smtp.Host == "" {
		params.Logger.Warn("smtp not configured, mail delivery degrades to log output")

		return &logMailer{logger: params.Logger}, nil
	}

	opts := []gomail.Option{
		gomail.WithPort(smtp.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(smtp.Username),
		gomail.WithPassword(smtp.Password),
	}

	client, err := gomail.NewClient(smtp.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create smtp client")
	}

	return &smtpMailer{
		client: client,
		from:   smtp.From,
		logger: params.Logger,
	}, nil
}

// SendVerificationCode delivers a one-time code to the recipient email.
func (m *smtpMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	subject := "Your verification code"
	body := fmt.Sprintf("Your verification code is %s. It expires in a few minutes. If you did not request it, you can ignore this message.", code)

	return m.send(ctx, email, subject, body)
}

// SendSecurityAlert delivers a security notice to the recipient email.
func (m *smtpMailer) SendSecurityAlert(ctx context.Context, email, subject, body string) error {
	return m.send(ctx, email, subject, body)
}

func (m *smtpMailer) send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return errors.Wrap(err, "set mail sender")
	}
	if err := msg.To(to); err != nil {
		return errors.Wrap(err, "set mail recipient")
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, "send mail")
	}

	return nil
}

// SendVerificationCode records the delivery without exposing the code.
func (m *logMailer) SendVerificationCode(ctx context.Context, email, _ string) error {
	m.logger.InfoContext(ctx, "verification code issued", slog.String("email", email))

	return nil
}

// SendSecurityAlert records the notice instead of mailing it.
func (m *logMailer) SendSecurityAlert(ctx context.Context, email, subject, _ string) error {
	m.logger.InfoContext(ctx, "security alert issued",
		slog.String("email", email),
		slog.String("subject", subject))

	return nil
}
