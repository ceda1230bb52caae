package core

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/deque"
)

// DefaultHistoryCapacity is the number of messages retained per room when no capacity is configured.
const DefaultHistoryCapacity = 100

// MessageCache is the bounded, ordered history of a single room.
//
// Append assigns the next sequence number and timestamp and evicts the oldest
// entry once the capacity is exceeded. Evicted entries are never renumbered, so
// IDs stay strictly increasing even though the retained window may start above 1.
type MessageCache struct {
	mu       sync.RWMutex
	capacity int
	lastID   int64
	clock    clock.Clock
	items    deque.Deque[Message]
}

// NewMessageCache builds an empty cache. Non-positive capacity falls back to DefaultHistoryCapacity.
func NewMessageCache(capacity int, clk clock.Clock) *MessageCache {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	if clk == nil {
		clk = clock.New()
	}
	return &MessageCache{
		capacity: capacity,
		clock:    clk,
	}
}

// Append stores msg at the tail and returns the authoritative copy carrying its ID and timestamp.
func (c *MessageCache) Append(msg Message) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastID++
	msg.ID = c.lastID
	msg.CreatedAt = c.clock.Now()

	c.items.PushBack(msg)
	if c.items.Len() > c.capacity {
		c.items.PopFront()
	}
	return msg
}

// Snapshot returns a point-in-time copy of the history, oldest first.
func (c *MessageCache) Snapshot() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, c.items.Len())
	for i := range out {
		out[i] = c.items.At(i)
	}
	return out
}

// Len returns the number of retained messages.
func (c *MessageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items.Len()
}

// Capacity returns the fixed retention limit.
func (c *MessageCache) Capacity() int {
	return c.capacity
}

// LastID returns the highest ID assigned so far, or 0 if nothing was appended.
func (c *MessageCache) LastID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastID
}
