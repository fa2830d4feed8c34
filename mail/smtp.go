// Package mail implements authcore.Mailer over SMTP with the net/smtp
// client. Messages are sent as HTML with a minimal MIME header set.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	authcore "github.com/cipherangel/authcore"
)

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Mailer sends through one SMTP relay with PLAIN auth over STARTTLS when
// the server offers it.
type Mailer struct {
	cfg  Config
	addr string

	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New validates cfg and returns a Mailer.
func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp port %d out of range", cfg.Port)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from address is required")
	}

	return &Mailer{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		send: smtp.SendMail,
	}, nil
}

// Send delivers one message. The context deadline is honored only up to
// connection setup; net/smtp offers no per-command cancellation.
func (m *Mailer) Send(ctx context.Context, msg authcore.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("recipient required")
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	payload := m.encode(msg)
	if err := m.send(m.addr, auth, m.cfg.From, []string{msg.To}, payload); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *Mailer) encode(msg authcore.Message) []byte {
	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// sanitizeHeader strips CR and LF so message fields cannot inject extra
// headers.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	return strings.ReplaceAll(v, "\n", "")
}
