package core

import "sync"

// Subscription is the handle returned by Hub.Join. It binds one channel to one room.
//
// Outbound messages are queued in id order by the room and drained by a single
// pump goroutine, so slow channels never block the writer that triggered a broadcast.
type Subscription struct {
	ID   string
	Room string
	Name string

	room  *Room
	ch    Channel
	queue chan Message
	done  chan struct{}
	once  sync.Once
}

func newSubscription(id string, room *Room, name string, ch Channel, queueSize int) *Subscription {
	if name == "" {
		name = id
	}
	return &Subscription{
		ID:    id,
		Room:  room.ID,
		Name:  name,
		room:  room,
		ch:    ch,
		queue: make(chan Message, queueSize),
		done:  make(chan struct{}),
	}
}

// Done is closed once the subscription has left its room, either explicitly or after a delivery failure.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// offer enqueues msg without blocking. False means the queue is full.
func (s *Subscription) offer(msg Message) bool {
	select {
	case s.queue <- msg:
		return true
	default:
		return false
	}
}

// close marks the subscription as left. Returns true only for the first call.
func (s *Subscription) close() bool {
	closed := false
	s.once.Do(func() {
		close(s.done)
		closed = true
	})
	return closed
}

func (s *Subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
