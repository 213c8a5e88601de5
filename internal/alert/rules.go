package alert

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// DefaultRules is the rule set used when the config file defines none.
// Escalation levels are 0-based and level 0 always fires immediately.
func DefaultRules() []models.AlertRule {
	return []models.AlertRule{
		{
			ID:              "high-error-rate",
			Name:            "High Error Rate",
			Condition:       "error_rate > threshold",
			Threshold:       5,
			Severity:        models.SeverityCritical,
			Category:        models.CategorySystem,
			Enabled:         true,
			CooldownMinutes: 15,
			EscalationRules: []models.EscalationRule{
				{Level: 0, DelayMinutes: 0, Channels: []string{"slack", "email"}, Recipients: []string{"dev-team"}},
				{Level: 1, DelayMinutes: 15, Channels: []string{"slack", "email", "sms"}, Recipients: []string{"dev-team", "ops-team"}},
			},
		},
		{
			ID:              "high-response-time",
			Name:            "High Response Time",
			Condition:       "avg_response_time > threshold",
			Threshold:       2000,
			Severity:        models.SeverityHigh,
			Category:        models.CategoryPerformance,
			Enabled:         true,
			CooldownMinutes: 10,
			EscalationRules: []models.EscalationRule{
				{Level: 0, DelayMinutes: 0, Channels: []string{"slack"}, Recipients: []string{"dev-team"}},
			},
		},
		{
			ID:              "storage-usage-high",
			Name:            "Storage Usage High",
			Condition:       "storage_usage > threshold",
			Threshold:       85,
			Severity:        models.SeverityMedium,
			Category:        models.CategorySystem,
			Enabled:         true,
			CooldownMinutes: 60,
			EscalationRules: []models.EscalationRule{
				{Level: 0, DelayMinutes: 0, Channels: []string{"slack", "email"}, Recipients: []string{"ops-team"}},
			},
		},
		{
			ID:              "failed-uploads",
			Name:            "High Upload Failure Rate",
			Condition:       "upload_failure_rate > threshold",
			Threshold:       10,
			Severity:        models.SeverityHigh,
			Category:        models.CategoryBusiness,
			Enabled:         true,
			CooldownMinutes: 5,
			EscalationRules: []models.EscalationRule{
				{Level: 0, DelayMinutes: 0, Channels: []string{"slack", "email"}, Recipients: []string{"dev-team", "business-team"}},
			},
		},
		{
			ID:              "security-breach-attempt",
			Name:            "Security Breach Attempt",
			Condition:       "failed_login_attempts > threshold",
			Threshold:       10,
			Severity:        models.SeverityCritical,
			Category:        models.CategorySecurity,
			Enabled:         true,
			CooldownMinutes: 1,
			EscalationRules: []models.EscalationRule{
				{Level: 0, DelayMinutes: 0, Channels: []string{"slack", "email", "sms"}, Recipients: []string{"security-team", "dev-team"}},
			},
		},
	}
}

// ValidateRules rejects structurally invalid rules at startup: misnumbered
// or delayed level-0 tiers and references to unknown channel types are
// programmer errors and must not surface at steady state.
func ValidateRules(rules []models.AlertRule, channelTypes map[string]bool) error {
	for _, rule := range rules {
		if rule.ID == "" || rule.Name == "" {
			return fmt.Errorf("rule %q: id and name are required", rule.Name)
		}
		for i, esc := range rule.EscalationRules {
			if esc.Level != i {
				return fmt.Errorf("rule %q: escalation levels must be 0-based and ordered, got level %d at index %d", rule.ID, esc.Level, i)
			}
			if i == 0 && esc.DelayMinutes != 0 {
				return fmt.Errorf("rule %q: escalation level 0 must be immediate", rule.ID)
			}
			for _, ch := range esc.Channels {
				if !channelTypes[ch] {
					return fmt.Errorf("rule %q: escalation level %d references undefined channel type %q", rule.ID, i, ch)
				}
			}
		}
	}
	return nil
}

// ImportRules reads a JSON rule file, for operators maintaining rules
// outside the main config.
func ImportRules(filename string) ([]models.AlertRule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var rules []models.AlertRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return rules, nil
}

// ExportRules writes rules as indented JSON.
func ExportRules(filename string, rules []models.AlertRule) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	return nil
}
