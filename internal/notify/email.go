package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"weather-alerts/internal/alerting"
	"weather-alerts/pkg/logging"
)

// ChannelEmail is the Name() of EmailNotifier.
const ChannelEmail = "email"

// EmailConfig holds SMTP settings. The sender address doubles as the SMTP username.
type EmailConfig struct {
	Host     string
	Port     int
	Sender   string
	Password string
	Receiver string
	Timeout  time.Duration
}

// mailSender is satisfied by *mail.Client.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier sends plain-text mail over implicit TLS with PLAIN auth.
type EmailNotifier struct {
	cfg    EmailConfig
	logger *logging.StructuredLogger
	dial   func() (mailSender, error)
}

// NewEmailNotifier builds a notifier. No connection is made until Send.
func NewEmailNotifier(cfg EmailConfig, logger *logging.StructuredLogger) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg, logger: logger}
	n.dial = func() (mailSender, error) {
		return mail.NewClient(cfg.Host,
			mail.WithPort(cfg.Port),
			mail.WithSSL(),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Sender),
			mail.WithPassword(cfg.Password),
			mail.WithTimeout(cfg.Timeout),
		)
	}
	return n
}

func (n *EmailNotifier) Name() string {
	return ChannelEmail
}

// Send delivers msg to the configured receiver.
func (n *EmailNotifier) Send(ctx context.Context, msg alerting.Message) error {
	m, err := n.buildMessage(msg)
	if err != nil {
		return &NotificationError{Channel: ChannelEmail, Err: err}
	}

	client, err := n.dial()
	if err != nil {
		return &NotificationError{Channel: ChannelEmail, Err: fmt.Errorf("failed to create smtp client: %w", err)}
	}

	sendCtx := ctx
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}

	if err := client.DialAndSendWithContext(sendCtx, m); err != nil {
		return &NotificationError{Channel: ChannelEmail, Err: err}
	}

	n.logger.Info(ctx, "[NOTIFY_EMAIL_SENT] Alert email sent", logging.Fields{
		"receiver": n.cfg.Receiver,
		"host":     n.cfg.Host,
	})
	return nil
}

func (n *EmailNotifier) buildMessage(msg alerting.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(n.cfg.Receiver); err != nil {
		return nil, fmt.Errorf("invalid receiver: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
