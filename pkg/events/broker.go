package events

import (
	"log/slog"
	"sync"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events; the journal remains the
// authoritative record and catch-up replay covers the gap.
const subscriberBuffer = 64

// Broker fans published events out to in-process subscribers, keyed by
// channel name (see ProjectChannel). Delivery is fire-and-forget: a full
// subscriber buffer drops the event rather than blocking the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	logger *slog.Logger
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[string]map[int]chan Event),
		logger: slog.With("component", "events.broker"),
	}
}

// Subscribe registers a new subscriber on a channel and returns the event
// stream plus a cancel function. Cancel closes the stream and is safe to
// call more than once.
func (b *Broker) Subscribe(channel string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Event, subscriberBuffer)
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan Event)
	}
	b.subs[channel][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[channel]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(b.subs, channel)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Broadcast delivers the event to every subscriber of the channel,
// dropping it for subscribers whose buffer is full.
func (b *Broker) Broadcast(channel string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("Dropping event for slow subscriber",
				"channel", channel, "kind", ev.Kind, "seq", ev.Seq)
		}
	}
}

// SubscriberCount reports the number of active subscribers on a channel.
func (b *Broker) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
