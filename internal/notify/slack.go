package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/slack-go/slack"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// SlackChannel posts alerts as colored attachments to a Slack channel.
type SlackChannel struct {
	client   *slack.Client
	channel  string
	username string
}

func NewSlackChannel(cfg config.SlackSettings) (*SlackChannel, error) {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil, errors.New("slack token and channel are required")
	}
	username := cfg.Username
	if username == "" {
		username = "HafiPortrait Alert Bot"
	}
	return &SlackChannel{
		client:   slack.New(cfg.Token),
		channel:  cfg.Channel,
		username: username,
	}, nil
}

func (c *SlackChannel) Type() string { return "slack" }

func (c *SlackChannel) Send(ctx context.Context, a models.Alert, recipients []string) error {
	attachment := slack.Attachment{
		Color: severityColor(a.Severity),
		Title: a.Title,
		Text:  a.Message,
		Fields: []slack.AttachmentField{
			{Title: "Severity", Value: strings.ToUpper(string(a.Severity)), Short: true},
			{Title: "Category", Value: string(a.Category), Short: true},
			{Title: "Source", Value: a.Source, Short: true},
			{Title: "Escalation Level", Value: strconv.Itoa(a.EscalationLevel), Short: true},
		},
		Footer: "HafiPortrait Alert System",
		Ts:     json.Number(strconv.FormatInt(a.Timestamp.Unix(), 10)),
	}
	if len(recipients) > 0 {
		attachment.Fields = append(attachment.Fields, slack.AttachmentField{
			Title: "Notify", Value: strings.Join(recipients, ", "), Short: true,
		})
	}

	_, _, err := c.client.PostMessageContext(
		ctx,
		c.channel,
		slack.MsgOptionUsername(c.username),
		slack.MsgOptionAttachments(attachment),
	)
	return err
}

func severityColor(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "#FF0000"
	case models.SeverityHigh:
		return "#FF6600"
	case models.SeverityMedium:
		return "#FFAA00"
	case models.SeverityLow:
		return "#FFDD00"
	case models.SeverityInfo:
		return "#00AA00"
	default:
		return "#808080"
	}
}
