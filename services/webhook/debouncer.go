package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/logger"
)

// TriggerFunc kicks off a sync for an account. The debouncer calls it
// with a background-derived context because the HTTP request that
// delivered the notification is long gone by the time the timer fires.
type TriggerFunc func(ctx context.Context, userID, accountID string, trigger enum.SyncTrigger) (string, error)

// Debouncer collapses notification bursts into one sync per account per
// window. The first notification arms a timer; later ones inside the
// window are absorbed.
type Debouncer struct {
	log     logger.Logger
	window  time.Duration
	trigger TriggerFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewDebouncer(log logger.Logger, window time.Duration, trigger TriggerFunc) *Debouncer {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &Debouncer{
		log:     log,
		window:  window,
		trigger: trigger,
		timers:  make(map[string]*time.Timer),
	}
}

// Notify registers a provider change notification for an account.
func (d *Debouncer) Notify(userID, accountID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, pending := d.timers[accountID]; pending {
		return
	}

	d.timers[accountID] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, accountID)
		d.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, err := d.trigger(ctx, userID, accountID, enum.TriggerWebhook)
		if err != nil {
			// A run already in flight will pick the new mail up anyway.
			d.log.Warnf("webhook-triggered sync for account %s not started: %v", accountID, err)
		}
	})
}

// Pending reports whether a timer is armed for the account.
func (d *Debouncer) Pending(accountID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[accountID]
	return ok
}

// Stop cancels all armed timers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}
