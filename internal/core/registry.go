package core

import (
	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry owns the mapping from room id to Room.
// Rooms are created lazily and live for the lifetime of the registry.
type Registry struct {
	rooms    *xsync.MapOf[string, *Room]
	capacity int
	clock    clock.Clock
}

// NewRegistry builds an empty registry whose rooms retain capacity messages each.
func NewRegistry(capacity int, clk clock.Clock) *Registry {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		rooms:    xsync.NewMapOf[string, *Room](),
		capacity: capacity,
		clock:    clk,
	}
}

// GetOrCreate returns the room for id, creating it if needed.
// Concurrent callers for the same unseen id always observe the same *Room.
func (r *Registry) GetOrCreate(id string) *Room {
	room, _ := r.rooms.LoadOrCompute(id, func() *Room {
		return NewRoom(id, r.capacity, r.clock)
	})
	return room
}

// Get looks up a room without creating it.
func (r *Registry) Get(id string) (*Room, bool) {
	return r.rooms.Load(id)
}

// Len returns the number of rooms created so far.
func (r *Registry) Len() int {
	return r.rooms.Size()
}

// Range calls fn for every room until fn returns false.
func (r *Registry) Range(fn func(room *Room) bool) {
	r.rooms.Range(func(_ string, room *Room) bool {
		return fn(room)
	})
}
