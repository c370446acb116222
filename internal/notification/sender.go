// Package notification renders and delivers realm lifecycle emails.
//
// Delivery goes through a Dispatcher so that a slow or failing mail server
// never fails the lifecycle operation that triggered the email. In postgres
// mode the dispatcher is a durable job queue; in memory mode it is a
// detached task on the gateway worker pool.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"realmsteward.io/steward/internal/config"
	"realmsteward.io/steward/internal/pkg/logger"
)

// Email is one outbound message.
type Email struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Validate checks that e can be delivered.
func (e Email) Validate() error {
	if len(e.To) == 0 && len(e.Cc) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	if e.Subject == "" {
		return fmt.Errorf("email subject is required")
	}
	return nil
}

// Gateway delivers an email synchronously.
type Gateway interface {
	SendEmail(ctx context.Context, e Email) error
}

// NewGateway returns an SMTP gateway, or a logging gateway when no SMTP
// host is configured.
func NewGateway(cfg config.NotificationConfig) Gateway {
	if cfg.SMTPHost == "" {
		logger.Warn("notification.smtp_host not set, emails are logged instead of sent")
		return LogGateway{}
	}
	return NewSMTPGateway(cfg)
}

// SMTPGateway sends email through an SMTP relay.
type SMTPGateway struct {
	cfg config.NotificationConfig
}

var _ Gateway = (*SMTPGateway)(nil)

// NewSMTPGateway creates a gateway for cfg. Connections are opened per send.
func NewSMTPGateway(cfg config.NotificationConfig) *SMTPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPGateway{cfg: cfg}
}

// SendEmail delivers e within the configured timeout.
func (g *SMTPGateway) SendEmail(ctx context.Context, e Email) error {
	msg, err := g.buildMessage(e)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(g.cfg.SMTPPort),
		mail.WithTimeout(g.cfg.Timeout),
	}
	if g.cfg.SMTPTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if g.cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(g.cfg.SMTPUsername),
			mail.WithPassword(g.cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(g.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email %q: %w", e.Subject, err)
	}
	return nil
}

func (g *SMTPGateway) buildMessage(e Email) (*mail.Msg, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	msg := mail.NewMsg()
	if err := msg.From(g.cfg.From); err != nil {
		return nil, fmt.Errorf("email from: %w", err)
	}
	if len(e.To) > 0 {
		if err := msg.To(e.To...); err != nil {
			return nil, fmt.Errorf("email to: %w", err)
		}
	}
	if len(e.Cc) > 0 {
		if err := msg.Cc(e.Cc...); err != nil {
			return nil, fmt.Errorf("email cc: %w", err)
		}
	}
	msg.Subject(e.Subject)
	msg.SetBodyString(mail.TypeTextPlain, e.Body)
	return msg, nil
}

// LogGateway writes emails to the log. Used when SMTP is not configured.
type LogGateway struct{}

func (LogGateway) SendEmail(_ context.Context, e Email) error {
	if err := e.Validate(); err != nil {
		return err
	}
	logger.Info("email (not sent, smtp disabled)",
		zap.String("to", strings.Join(e.To, ",")),
		zap.String("cc", strings.Join(e.Cc, ",")),
		zap.String("subject", e.Subject),
	)
	return nil
}
