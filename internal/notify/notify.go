// Package notify scans the store for events that are about to start and
// hands each one to a Sink exactly once per session.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// Source is the part of the event store a Notifier reads from.
type Source interface {
	GetUpcoming(ctx context.Context, minutesAhead int) ([]model.Event, error)
	NotificationLead(ctx context.Context) (time.Duration, error)
}

// Sink delivers a reminder for one event.
type Sink interface {
	Notify(ctx context.Context, ev model.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev model.Event) error

func (f SinkFunc) Notify(ctx context.Context, ev model.Event) error { return f(ctx, ev) }

// Title is the heading used for every reminder.
const Title = "Calendar Event Reminder"

// Message renders the reminder text for ev, e.g. "Event at 09:30: Standup".
func Message(ev model.Event) string {
	return fmt.Sprintf("Event at %s: %s", ev.StartTime.Format("15:04"), ev.Title)
}

// LogSink writes reminders to the application log.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, ev model.Event) error {
	appLog.Info(Title,
		"message", Message(ev),
		"event_id", ev.ID,
		"start", ev.StartTime.Format(time.RFC3339),
		"location", ev.Location,
	)
	return nil
}

// Notifier remembers which event ids it has already announced. The set only
// grows, so an event edited after its reminder is not announced again.
type Notifier struct {
	src  Source
	sink Sink

	mu   sync.Mutex
	seen map[int64]struct{}
}

// New returns a Notifier with an empty seen set. A nil sink means LogSink.
func New(src Source, sink Sink) *Notifier {
	if sink == nil {
		sink = LogSink{}
	}
	return &Notifier{
		src:  src,
		sink: sink,
		seen: make(map[int64]struct{}),
	}
}

// Scan looks up events starting within the configured lead time, delivers
// those not seen before and returns them. An event whose delivery fails is
// not marked seen and is retried by the next scan.
func (n *Notifier) Scan(ctx context.Context) ([]model.Event, error) {
	lead, err := n.src.NotificationLead(ctx)
	if err != nil {
		return nil, err
	}
	upcoming, err := n.src.GetUpcoming(ctx, int(lead/time.Minute))
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var delivered []model.Event
	for _, ev := range upcoming {
		if _, ok := n.seen[ev.ID]; ok {
			continue
		}
		if err := n.sink.Notify(ctx, ev); err != nil {
			appLog.Error("notify: delivery failed", err, "event_id", ev.ID)
			continue
		}
		n.seen[ev.ID] = struct{}{}
		delivered = append(delivered, ev)
	}
	return delivered, nil
}

// Seen reports whether a reminder for id has been delivered.
func (n *Notifier) Seen(id int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.seen[id]
	return ok
}
