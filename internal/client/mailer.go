// Outbound mail client used to deliver OTP codes out-of-band.
//
// Environment (via config.MailConfig):
//   - SMTP_HOST (default: smtp.gmail.com)
//   - SMTP_PORT (default: 587)
//   - SENDER_NAME (default: Authentic)
//   - SENDER_EMAIL
//   - SENDER_PASSWORD

package client

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/authentic/backend/internal/config"
)

type Mailer struct {
	host       string
	port       string
	senderName string
	sender     string
	password   string
}

func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{
		host:       cfg.SMTPHost,
		port:       cfg.SMTPPort,
		senderName: cfg.SenderName,
		sender:     cfg.Sender,
		password:   cfg.Password,
	}
}

func (m *Mailer) IsConfigured() bool {
	return m.sender != "" && m.password != ""
}

// Send delivers a single HTML mail. Callers treat failures as non-fatal;
// the auth flow must not depend on delivery succeeding.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("mailer not configured: SENDER_EMAIL/SENDER_PASSWORD missing")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %q <%s>\r\n", m.senderName, m.sender)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	auth := smtp.PlainAuth("", m.sender, m.password, m.host)
	addr := net.JoinHostPort(m.host, m.port)
	if err := smtp.SendMail(addr, auth, m.sender, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
