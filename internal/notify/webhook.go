package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// WebhookChannel posts the full alert as JSON to a generic receiver.
type WebhookChannel struct {
	url    string
	token  string
	client *http.Client
}

func NewWebhookChannel(cfg config.WebhookSettings) (*WebhookChannel, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	return &WebhookChannel{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *WebhookChannel) Type() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, a models.Alert, recipients []string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"alert":      a,
		"recipients": recipients,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"source":     "hafiportrait-alert-manager",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
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
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
