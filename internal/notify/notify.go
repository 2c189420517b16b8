// Package notify delivers outbound mail notifications. Notifications are
// best-effort collaborators of the submission pipeline: Send reports failures
// as error values and callers decide whether a failure matters (it normally
// does not change the submission outcome).
package notify

import (
	"context"
	"errors"

	"github.com/wneessen/go-mail"

	"github.com/vallit/go-site-backend/internal/config"
)

// ErrNotConfigured is returned by Send when no SMTP host is configured.
var ErrNotConfigured = errors.New("notify: smtp not configured")

// Message is one outbound notification with recipient, subject, and body.
type Message struct {
	To       string
	ReplyTo  string // optional
	Subject  string
	HTMLBody string
}

// Notifier sends outbound messages.
type Notifier interface {
	Send(ctx context.Context, m Message) error
}

// SMTPNotifier sends messages through a configured SMTP relay. Port 465
// selects implicit TLS; any other port negotiates STARTTLS opportunistically,
// matching common relay setups on 587.
type SMTPNotifier struct {
	cfg config.SMTPConfig
}

// NewSMTP constructs an SMTPNotifier from config.
func NewSMTP(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// AdminEmail returns the configured admin recipient address.
func (n *SMTPNotifier) AdminEmail() string { return n.cfg.AdminEmail }

// Send delivers one message. A fresh connection is dialed per call; the
// volume here is form submissions, not bulk mail.
func (n *SMTPNotifier) Send(ctx context.Context, m Message) error {
	if n.cfg.Host == "" {
		return ErrNotConfigured
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.Sender); err != nil {
		return err
	}
	if err := msg.To(m.To); err != nil {
		return err
	}
	if m.ReplyTo != "" {
		if err := msg.ReplyTo(m.ReplyTo); err != nil {
			return err
		}
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextHTML, m.HTMLBody)

	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.User),
		mail.WithPassword(n.cfg.Pass),
	}
	if n.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}
