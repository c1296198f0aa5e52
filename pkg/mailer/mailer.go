package mailer

import (
	"context"
	"crypto/tls"
	"sync"

	"gopkg.in/mail.v2"

	"github.com/learnsphere/learnsphere-backend/pkg/config"
	pkgerrors "github.com/learnsphere/learnsphere-backend/pkg/errors"
)

// securePort is the standard SMTPS port. Connections to it use implicit TLS;
// every other port requires a STARTTLS upgrade before authentication.
const securePort = 465

// Message is one outbound email. Text and HTML are alternative bodies of the
// same message.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends email through a single lazily-built SMTP dialer shared across
// dispatches.
type Mailer struct {
	cfg config.EmailConfig

	once   sync.Once
	dialer *mail.Dialer
}

// New builds a mailer. The underlying dialer is not constructed until the
// first send.
func New(cfg config.EmailConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email host required")
	}
	if cfg.From == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email from address required")
	}
	return &Mailer{cfg: cfg}, nil
}

func (m *Mailer) transport() *mail.Dialer {
	m.once.Do(func() {
		d := mail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
		if m.cfg.Port == securePort {
			d.SSL = true
		} else {
			d.StartTLSPolicy = mail.MandatoryStartTLS
		}
		d.TLSConfig = &tls.Config{ServerName: m.cfg.Host}
		m.dialer = d
	})
	return m.dialer
}

// Send composes and delivers one message. Transport failures are surfaced to
// the caller without internal retries.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := mail.NewMessage()
	message.SetHeader("From", m.cfg.From)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		message.AddAlternative("text/html", msg.HTML)
	}

	if err := m.transport().DialAndSend(message); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sending email")
	}
	return nil
}
