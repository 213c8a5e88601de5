package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// SMSChannel delivers a short text to every configured number through an
// HTTP SMS gateway. Numbers are tried in order; the first failure aborts the
// remainder so the dispatcher sees the error.
type SMSChannel struct {
	apiURL  string
	token   string
	numbers []string
	client  *http.Client
}

func NewSMSChannel(cfg config.SMSSettings) (*SMSChannel, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("sms api_url is required")
	}
	if len(cfg.Numbers) == 0 {
		return nil, errors.New("sms numbers are required")
	}
	return &SMSChannel{
		apiURL:  cfg.APIURL,
		token:   cfg.Token,
		numbers: cfg.Numbers,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *SMSChannel) Type() string { return "sms" }

func (c *SMSChannel) Send(ctx context.Context, a models.Alert, recipients []string) error {
	message := fmt.Sprintf("[%s] %s: %s (source: %s)",
		strings.ToUpper(string(a.Severity)), a.Title, a.Message, a.Source)

	for _, number := range c.numbers {
		if err := c.sendOne(ctx, number, message); err != nil {
			return fmt.Errorf("sms to %s failed: %w", number, err)
		}
	}
	return nil
}

func (c *SMSChannel) sendOne(ctx context.Context, number, message string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      number,
		"message": message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}
