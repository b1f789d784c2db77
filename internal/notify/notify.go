// Package notify delivers short outcome messages ("toasts") for user actions.
// Delivery is fire-and-forget: sinks never report failure to the caller.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/splax/umd/internal/domain"
)

// Sink receives notifications.
type Sink interface {
	Notify(n domain.Notification)
}

// New builds a notification stamped with a fresh id.
func New(title, description string, variant domain.Variant) domain.Notification {
	if variant == "" {
		variant = domain.VariantDefault
	}
	return domain.Notification{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Variant:     variant,
		CreatedAt:   time.Now().UTC(),
	}
}

// Fanout forwards each notification to every sink in order.
type Fanout []Sink

// Notify implements Sink.
func (f Fanout) Notify(n domain.Notification) {
	for _, sink := range f {
		if sink != nil {
			sink.Notify(n)
		}
	}
}

// Discard drops every notification.
type Discard struct{}

// Notify implements Sink.
func (Discard) Notify(domain.Notification) {}

// Outbox buffers notifications until the next page render drains them.
// When full the oldest entry is dropped.
type Outbox struct {
	mu    sync.Mutex
	items []domain.Notification
	limit int
}

// NewOutbox creates an outbox holding at most limit entries (minimum 1).
func NewOutbox(limit int) *Outbox {
	if limit <= 0 {
		limit = 1
	}
	return &Outbox{limit: limit}
}

// Notify implements Sink.
func (o *Outbox) Notify(n domain.Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, n)
	if over := len(o.items) - o.limit; over > 0 {
		o.items = append([]domain.Notification(nil), o.items[over:]...)
	}
}

// Drain returns pending notifications oldest first and empties the outbox.
func (o *Outbox) Drain() []domain.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.items
	o.items = nil
	return items
}

// Len reports the number of pending notifications.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Publisher is the subset of ws.Hub used for live delivery.
type Publisher interface {
	Broadcast(topic string, payload []byte)
}

// Broadcaster publishes JSON encoded notifications on a topic.
type Broadcaster struct {
	pub    Publisher
	topic  string
	logger *slog.Logger
}

// NewBroadcaster binds a publisher to topic, usually a session id.
func NewBroadcaster(pub Publisher, topic string, logger *slog.Logger) Broadcaster {
	return Broadcaster{pub: pub, topic: topic, logger: logger}
}

// Notify implements Sink.
func (b Broadcaster) Notify(n domain.Notification) {
	if b.pub == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		if b.logger != nil {
			b.logger.Error("notification encode failed", "error", err)
		}
		return
	}
	b.pub.Broadcast(b.topic, payload)
}
