package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
	"github.com/ylxai/hafiportrait-monitor/internal/monitor"
)

// Client talks to a running hafimon instance's query API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health is the /api/v1/health response.
type Health struct {
	Status       models.Status        `json:"status"`
	Timestamp    time.Time            `json:"timestamp"`
	Metrics      models.SystemMetrics `json:"metrics"`
	HealthChecks []models.HealthCheck `json:"healthChecks"`
	Stats        monitor.SystemStats  `json:"stats"`
}

func (c *Client) GetHealth() (*Health, error) {
	var health Health
	if err := c.get("/api/v1/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// AlertFilter narrows ListAlerts server-side.
type AlertFilter struct {
	Severity string
	Category string
	Resolved string
	Limit    int
}

func (c *Client) ListAlerts(f AlertFilter) ([]models.Alert, error) {
	params := url.Values{}
	if f.Severity != "" {
		params.Set("severity", f.Severity)
	}
	if f.Category != "" {
		params.Set("category", f.Category)
	}
	if f.Resolved != "" {
		params.Set("resolved", f.Resolved)
	}
	if f.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", f.Limit))
	}

	var resp struct {
		Alerts []models.Alert `json:"alerts"`
	}
	if err := c.get("/api/v1/alerts", params, &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

func (c *Client) GetStats() (map[string]json.RawMessage, error) {
	var stats map[string]json.RawMessage
	if err := c.get("/api/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) ResolveAlert(alertID, resolvedBy string) error {
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.post(map[string]interface{}{
		"action":     "resolve-alert",
		"alertId":    alertID,
		"resolvedBy": resolvedBy,
	}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("alert %s not found", alertID)
	}
	return nil
}

func (c *Client) TriggerCheck() error {
	return c.post(map[string]interface{}{"action": "health-check"}, nil)
}

func (c *Client) SendTestAlert() (*models.Alert, error) {
	var resp struct {
		Alert models.Alert `json:"alert"`
	}
	if err := c.post(map[string]interface{}{"action": "test-alert"}, &resp); err != nil {
		return nil, err
	}
	return &resp.Alert, nil
}

func (c *Client) get(path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/monitoring", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
