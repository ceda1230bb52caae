package core

import (
	"sync"

	"github.com/benbjohnson/clock"
)

// Room is the chat context for one market: bounded history plus the current subscribers.
// The room lock covers append-and-fan-out and snapshot-and-register as single steps,
// which is what keeps history replay strictly ahead of live delivery.
type Room struct {
	ID string

	mu          sync.Mutex
	cache       *MessageCache
	subscribers map[string]*Subscription
}

// NewRoom constructs a room with an empty history of the given capacity.
func NewRoom(id string, capacity int, clk clock.Clock) *Room {
	return &Room{
		ID:          id,
		cache:       NewMessageCache(capacity, clk),
		subscribers: make(map[string]*Subscription),
	}
}

// Snapshot returns the cached history, oldest first.
func (r *Room) Snapshot() []Message {
	return r.cache.Snapshot()
}

// Capacity returns the history retention limit.
func (r *Room) Capacity() int {
	return r.cache.Capacity()
}

// SubscriberCount returns the number of active subscriptions.
func (r *Room) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// HasSubscriber reports whether the subscription id is currently registered.
func (r *Room) HasSubscriber(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subscribers[id]
	return ok
}

// attach queues the current history for sub and then registers it.
// Returns false if the history did not fit into the subscription queue.
func (r *Room) attach(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range r.cache.Snapshot() {
		if !sub.offer(msg) {
			return false
		}
	}
	r.subscribers[sub.ID] = sub
	return true
}

// publish appends msg and queues the stored copy for every subscriber.
// Subscribers whose queue is full are removed and returned to the caller.
func (r *Room) publish(msg Message) (Message, []*Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.cache.Append(msg)

	var dropped []*Subscription
	for id, sub := range r.subscribers {
		if sub.offer(stored) {
			continue
		}
		delete(r.subscribers, id)
		dropped = append(dropped, sub)
	}
	return stored, dropped
}

// detach removes sub. Returns true if it was registered.
func (r *Room) detach(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscribers[sub.ID]; !ok {
		return false
	}
	delete(r.subscribers, sub.ID)
	return true
}

// detachAll removes every subscriber and returns them.
func (r *Room) detachAll() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := make([]*Subscription, 0, len(r.subscribers))
	for id, sub := range r.subscribers {
		subs = append(subs, sub)
		delete(r.subscribers, id)
	}
	return subs
}
