package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// TelegramChannel delivers alerts to a Telegram chat, rate limited so an
// alert storm cannot trip the bot API.
type TelegramChannel struct {
	token   string
	chatID  int64
	limiter *rate.Limiter
}

func NewTelegramChannel(cfg config.TelegramSettings) (*TelegramChannel, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram bot_token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &TelegramChannel{
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(rate.Limit(float64(perSecond)), perSecond),
	}, nil
}

func (c *TelegramChannel) Type() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, a models.Alert, recipients []string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	b, err := bot.New(c.token)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	text := fmt.Sprintf(
		"*HafiPortrait Alert*\n\n*%s*\n%s\n\n"+
			"*Severity:* %s\n"+
			"*Category:* %s\n"+
			"*Source:* %s\n"+
			"*Notify:* %s\n"+
			"*Time:* %s",
		a.Title,
		a.Message,
		strings.ToUpper(string(a.Severity)),
		a.Category,
		a.Source,
		strings.Join(recipients, ", "),
		a.Timestamp.Format(time.RFC3339),
	)

	params := &bot.SendMessageParams{
		ChatID:    c.chatID,
		Text:      text,
		ParseMode: "Markdown",
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message to chat %d: %w", c.chatID, err)
	}
	return nil
}
