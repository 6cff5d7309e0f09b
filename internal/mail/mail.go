package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/config"
)

const resetSubject = "Action Required: Reset Your Password"

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #1a1a1a;">
  <h2>Password Reset Request</h2>
  <p>We received a request to reset the password for your account. No changes have been made yet.</p>
  <p>Click the link below to choose a new password. <strong>This link will expire in 15 minutes.</strong></p>
  <p><a href="{{.URL}}">Reset My Password</a></p>
  <p style="font-size: 13px; color: #6b7280;">If you did not request a password reset, please ignore this email.</p>
</body>
</html>
`))

// SMTPMailer sends mail through an authenticated SMTP relay.
type SMTPMailer struct {
	addr string
	host string
	auth smtp.Auth
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a mailer from the SMTP settings. Credentials are optional.
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	m := &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
		from: cfg.From,
		send: smtp.SendMail,
	}
	if cfg.User != "" {
		m.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return m, nil
}

// SendPasswordReset mails the reset link to a single recipient.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := buildResetMessage(m.from, to, resetURL, time.Now())
	if err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, envelopeAddress(m.from), []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.host, err)
	}
	return nil
}

// LogMailer writes reset links to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	m.log.Info("password reset email (not sent, SMTP not configured)",
		zap.String("to", to), zap.String("reset_url", resetURL))
	return nil
}

func buildResetMessage(from, to, resetURL string, at time.Time) ([]byte, error) {
	var body bytes.Buffer
	if err := resetTemplate.Execute(&body, struct{ URL string }{resetURL}); err != nil {
		return nil, fmt.Errorf("rendering reset email: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", resetSubject)
	fmt.Fprintf(&msg, "Date: %s\r\n", at.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// envelopeAddress strips a display name: "TaskFlow <a@b>" becomes "a@b".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}
