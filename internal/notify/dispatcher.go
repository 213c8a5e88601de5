package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// Dispatcher invokes every channel referenced by an escalation tier
// concurrently, with per-channel timeouts and failure isolation: one channel
// erroring or timing out never delays or blocks the others. There are no
// retries within a single escalation event.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	log      *logrus.Logger
}

func NewDispatcher(registry *Registry, timeout time.Duration, log *logrus.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{registry: registry, timeout: timeout, log: log}
}

// Dispatch sends the alert through all of the tier's channels and waits for
// them to settle. Missing or disabled channels are skipped silently.
func (d *Dispatcher) Dispatch(ctx context.Context, a models.Alert, esc models.EscalationRule) {
	var wg sync.WaitGroup
	for _, kind := range esc.Channels {
		ch, ok := d.registry.Get(kind)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			if err := ch.Send(sendCtx, a, esc.Recipients); err != nil {
				d.log.WithFields(logrus.Fields{
					"channel": ch.Type(),
					"alert":   a.ID,
				}).Warnf("notification failed: %v", err)
			}
		}(ch)
	}
	wg.Wait()
}
