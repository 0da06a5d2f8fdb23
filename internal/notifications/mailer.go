package notifications

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// Email is a single outbound message. The body is HTML unless Text is set.
type Email struct {
	To      []string
	Subject string
	Body    string
	Text    bool
}

// Mailer delivers email. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// SMTPConfig holds connection credentials for the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPMailer sends mail over SMTP, using implicit TLS on port 465 and
// STARTTLS otherwise.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer validates the configuration and constructs the mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("notifications: smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("notifications: smtp from address is required")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "587"
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send delivers the email, honouring context cancellation before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Email) error {
	if m == nil {
		return errors.New("notifications: mailer is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return errors.New("notifications: at least one recipient is required")
	}

	cfg := m.cfg
	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}

	raw := buildRawMessage(from, msg)
	addr := cfg.Host + ":" + cfg.Port

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	if cfg.Port == "465" {
		return m.sendTLS(addr, auth, cfg.From, msg.To, raw)
	}
	if err := smtp.SendMail(addr, auth, cfg.From, msg.To, raw); err != nil {
		return fmt.Errorf("notifications: smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, from string, to []string, raw []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return fmt.Errorf("notifications: tls dial: %w", err)
	}
	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write(raw)
	return err
}

func buildRawMessage(from string, msg Email) []byte {
	contentType := "text/html"
	if msg.Text {
		contentType = "text/plain"
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: %s; charset=\"UTF-8\"\r\n", contentType))
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
