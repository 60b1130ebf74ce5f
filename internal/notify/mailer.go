package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/devplatform/edir-lifecycle/internal/config"
	"github.com/sirupsen/logrus"
)

// Notifier tells the operator about follow-up work the tool cannot do itself
type Notifier interface {
	Notify(ctx context.Context, subject, body string)
}

// SendFunc matches smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends operator notifications through an SMTP relay. Delivery is
// best effort: failures are logged and never reach the caller.
type Mailer struct {
	addr   string
	from   string
	to     string
	send   SendFunc
	logger *logrus.Logger
}

// NewMailer creates a mailer from the run configuration
func NewMailer(cfg *config.Config, logger *logrus.Logger) *Mailer {
	return &Mailer{
		addr:   cfg.SMTPAddr,
		from:   cfg.NotifyFrom,
		to:     cfg.NotifyTo,
		send:   smtp.SendMail,
		logger: logger,
	}
}

// WithSender replaces the SMTP transport
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	m.send = send
	return m
}

// Notify sends one message
func (m *Mailer) Notify(ctx context.Context, subject, body string) {
	log := m.logger.WithFields(logrus.Fields{
		"to":      m.to,
		"subject": subject,
	})

	if err := ctx.Err(); err != nil {
		log.WithError(err).Error("Notification not sent")
		return
	}

	if err := m.send(m.addr, nil, m.from, []string{m.to}, Message(m.from, m.to, subject, body)); err != nil {
		log.WithError(err).Error("Unable to send notification email")
		return
	}

	log.Info("Notification email sent")
}

// Message renders a plain text RFC 5322 message
func Message(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
