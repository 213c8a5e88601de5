package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// EmailChannel sends alert mail over SMTP.
type EmailChannel struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

func NewEmailChannel(cfg config.EmailSettings) (*EmailChannel, error) {
	if cfg.SMTPHost == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("smtp host, from address and receivers are required")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &EmailChannel{
		dialer: gomail.NewDialer(cfg.SMTPHost, port, cfg.From, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}, nil
}

func (c *EmailChannel) Type() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, a models.Alert, recipients []string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", c.to...)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Title))

	body := fmt.Sprintf(`Alert: %s
Severity: %s
Category: %s
Source: %s
Escalation Level: %d
Time: %s

%s

Notify: %s`,
		a.Title, a.Severity, a.Category, a.Source, a.EscalationLevel,
		a.Timestamp.Format(time.RFC3339), a.Message, strings.Join(recipients, ", "))
	m.SetBody("text/plain", body)

	// gomail has no context support; run the send in a goroutine so the
	// dispatcher timeout still bounds the call.
	done := make(chan error, 1)
	go func() {
		done <- c.dialer.DialAndSend(m)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
