package broadcast

import (
	"context"
	"sync"
)

const defaultSubscriberBuffer = 16

// Subscription is one live listener on a routing key. Events arrive on C;
// the channel is closed when the subscription is removed.
type Subscription struct {
	C          <-chan []byte
	routingKey string
	ch         chan []byte
	once       sync.Once
}

// Hub is the in-process broadcast target: a registry of live subscriber
// channels keyed by routing key. Sends are non-blocking; a subscriber that
// cannot keep up drops events rather than stalling the delivery task.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: map[string]map[*Subscription]struct{}{}}
}

func (h *Hub) Subscribe(routingKey string) *Subscription {
	sub := &Subscription{
		routingKey: routingKey,
		ch:         make(chan []byte, defaultSubscriberBuffer),
	}
	sub.C = sub.ch

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers == nil {
		h.subscribers = map[string]map[*Subscription]struct{}{}
	}
	group, ok := h.subscribers[routingKey]
	if !ok {
		group = map[*Subscription]struct{}{}
		h.subscribers[routingKey] = group
	}
	group[sub] = struct{}{}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	if h == nil || sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if group, ok := h.subscribers[sub.routingKey]; ok {
		delete(group, sub)
		if len(group) == 0 {
			delete(h.subscribers, sub.routingKey)
		}
	}
	// Closing under the write lock keeps Send, which holds the read lock
	// while it delivers, from racing a send against the close.
	sub.once.Do(func() { close(sub.ch) })
}

// Send fans one event out to every subscriber on the routing key. A key
// with no subscribers is a successful no-op; delivery is best-effort.
func (h *Hub) Send(ctx context.Context, routingKey string, event []byte) error {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[routingKey] {
		select {
		case sub.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// SubscriberCount reports live listeners for a routing key.
func (h *Hub) SubscriberCount(routingKey string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[routingKey])
}
