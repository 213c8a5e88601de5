package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
	"github.com/ylxai/hafiportrait-monitor/internal/ws"
)

// Channel is one notification transport. Send must respect the context
// deadline supplied by the dispatcher.
type Channel interface {
	Type() string
	Send(ctx context.Context, a models.Alert, recipients []string) error
}

type entry struct {
	channel Channel
	enabled bool
}

// Registry maps channel types to transports. A channel whose required
// configuration is missing is registered disabled and skipped silently at
// dispatch time, never erroring the escalation.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	log     *logrus.Logger
}

// BuildRegistry constructs channels from the tagged per-type configs. The
// push channel is added automatically when a hub is supplied.
func BuildRegistry(cfgs []config.ChannelConfig, hub *ws.Hub, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Registry{entries: make(map[string]entry), log: log}

	for _, cfg := range cfgs {
		ch, err := buildChannel(cfg)
		if err != nil {
			log.WithField("channel", cfg.Type).Warnf("channel disabled: %v", err)
			r.register(&disabledChannel{kind: cfg.Type}, false)
			continue
		}
		r.register(ch, true)
	}

	if hub != nil {
		r.register(NewPushChannel(hub), true)
	}
	return r
}

func buildChannel(cfg config.ChannelConfig) (Channel, error) {
	switch cfg.Type {
	case "slack":
		return NewSlackChannel(cfg.Slack)
	case "email":
		return NewEmailChannel(cfg.Email)
	case "webhook":
		return NewWebhookChannel(cfg.Webhook)
	case "telegram":
		return NewTelegramChannel(cfg.Telegram)
	case "sms":
		return NewSMSChannel(cfg.SMS)
	default:
		return nil, errUnknownChannelType(cfg.Type)
	}
}

func (r *Registry) register(ch Channel, enabled bool) {
	r.mu.Lock()
	r.entries[ch.Type()] = entry{channel: ch, enabled: enabled}
	r.mu.Unlock()
}

// Get returns the channel for a type and whether it is enabled.
func (r *Registry) Get(kind string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[kind]
	if !ok || !e.enabled {
		return nil, false
	}
	return e.channel, true
}

// Types lists every registered channel type, enabled or not, for rule
// validation at startup.
func (r *Registry) Types() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make(map[string]bool, len(r.entries))
	for kind := range r.entries {
		types[kind] = true
	}
	return types
}

// KnownTypes lists every channel type the registry can build, whether or not
// the running config defines it. Rule validation accepts references to any of
// these; dispatch skips the unconfigured ones.
func KnownTypes() map[string]bool {
	return map[string]bool{
		"slack":    true,
		"email":    true,
		"webhook":  true,
		"telegram": true,
		"sms":      true,
		"push":     true,
	}
}

type errUnknownChannelType string

func (e errUnknownChannelType) Error() string {
	return "unknown channel type " + string(e)
}

// disabledChannel is a placeholder for a configured-but-unusable channel so
// rule validation still recognizes the type.
type disabledChannel struct {
	kind string
}

func (d *disabledChannel) Type() string { return d.kind }

func (d *disabledChannel) Send(context.Context, models.Alert, []string) error {
	return nil
}
