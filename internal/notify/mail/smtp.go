package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"time"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/models"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
}

// SMTPMailer delivers over SMTP, upgrading with STARTTLS when configured.
type SMTPMailer struct {
	config SMTPConfig
	logger logger.Logger
	now    func() time.Time
}

func NewSMTPMailer(cfg SMTPConfig, log logger.Logger) *SMTPMailer {
	return &SMTPMailer{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"transport": "smtp"}),
		now:    time.Now,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before sending email: %w", err)
	}

	body, err := BuildMIME(msg, m.now())
	if err != nil {
		return err
	}

	recipients := append(append([]string(nil), msg.To...), msg.Cc...)
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if m.config.UseTLS {
		err = m.sendWithTLS(addr, auth, msg.From, recipients, body)
	} else {
		err = smtp.SendMail(addr, auth, msg.From, recipients, body)
	}
	if err != nil {
		return apperrors.NewExternalServiceError("smtp", err)
	}

	m.logger.Debug("email sent", map[string]interface{}{"messageId": msg.ID, "recipients": len(recipients)})
	return nil
}

func (m *SMTPMailer) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range to {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}
