package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"crawlwatch/internal/api"
	"crawlwatch/internal/history"
)

// AlertStore persists alerts. *history.Store implements it.
type AlertStore interface {
	RecordAlert(ctx context.Context, a history.Alert) (int64, error)
	MarkDelivered(ctx context.Context, id int64) error
}

// Notifier keeps the last observed state, records the alerts each new
// snapshot raises and hands them to the configured sinks.
type Notifier struct {
	store AlertStore
	sinks []Sink
	now   func() time.Time

	mu    sync.Mutex
	state State
}

// New creates a notifier. store may be nil to skip persistence.
func New(store AlertStore, sinks ...Sink) *Notifier {
	return &Notifier{
		store: store,
		sinks: sinks,
		now:   time.Now,
	}
}

// Observe diffs snap against the previous state and delivers any alerts.
// Delivery failures are logged; the alert stays undelivered in the store.
func (n *Notifier) Observe(ctx context.Context, snap *api.Snapshot) []history.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := n.state.Merge(snap)
	alerts := Diff(n.state, next, n.now())
	n.state = next

	for i := range alerts {
		n.deliver(ctx, &alerts[i])
	}
	return alerts
}

func (n *Notifier) deliver(ctx context.Context, alert *history.Alert) {
	if n.store != nil {
		id, err := n.store.RecordAlert(ctx, *alert)
		if err != nil {
			log.Printf("[Notify] Failed to record alert: %v", err)
		}
		alert.ID = id
	}

	log.Printf("[Notify] %s: %s", alert.Kind, alert.Message)
	if len(n.sinks) == 0 {
		return
	}

	delivered := true
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, *alert); err != nil {
			delivered = false
			log.Printf("[Notify] %s delivery failed: %v", sink.Name(), err)
		}
	}
	if !delivered {
		return
	}
	alert.Delivered = true
	if n.store != nil && alert.ID != 0 {
		if err := n.store.MarkDelivered(ctx, alert.ID); err != nil {
			log.Printf("[Notify] %v", err)
		}
	}
}
