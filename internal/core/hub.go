package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/marketchat/internal/utils"
)

const (
	// DefaultQueueSize is the live-message headroom of a subscription queue on top of the history capacity.
	DefaultQueueSize = 64
	// DefaultSendTimeout bounds a single Channel.Send call.
	DefaultSendTimeout = 5 * time.Second
)

// Options configures a Hub. Zero values fall back to package defaults.
type Options struct {
	HistoryCapacity int
	QueueSize       int
	SendTimeout     time.Duration
	StatsInterval   time.Duration
	Clock           clock.Clock
	Logger          *zerolog.Logger
}

// Hub binds client channels to rooms: it replays history on join, appends and
// fans out on send, and removes subscribers on leave or delivery failure.
type Hub struct {
	rooms         *Registry
	queueSize     int
	sendTimeout   time.Duration
	statsInterval time.Duration
	clock         clock.Clock
	log           *zerolog.Logger
	closed        atomic.Bool
}

// NewHub creates a new chat hub instance.
func NewHub(opts Options) *Hub {
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Hub{
		rooms:         NewRegistry(opts.HistoryCapacity, opts.Clock),
		queueSize:     opts.HistoryCapacity + opts.QueueSize,
		sendTimeout:   opts.SendTimeout,
		statsInterval: opts.StatsInterval,
		clock:         opts.Clock,
		log:           logger,
	}
}

// Rooms exposes the registry for read-only lookups.
func (h *Hub) Rooms() *Registry {
	return h.rooms
}

// Join subscribes ch to roomID. The room's history is queued for ch before the
// subscription becomes visible to broadcasts, so replay always precedes live messages.
func (h *Hub) Join(roomID, name string, ch Channel) (*Subscription, error) {
	if roomID == "" {
		return nil, ErrEmptyRoom
	}
	if ch == nil {
		return nil, ErrNilChannel
	}
	if h.closed.Load() {
		return nil, ErrHubClosed
	}

	room := h.rooms.GetOrCreate(roomID)
	sub := newSubscription(utils.NewID(), room, name, ch, h.queueSize)
	if !room.attach(sub) {
		sub.close()
		return nil, ErrReplayFull
	}

	go h.pump(sub)

	// Run may have swept this room between the closed check and attach.
	if h.closed.Load() {
		h.Leave(sub)
		return nil, ErrHubClosed
	}

	h.log.Debug().
		Str("room_id", roomID).
		Str("subscription_id", sub.ID).
		Str("user", sub.Name).
		Int("subscribers", room.SubscriberCount()).
		Msg("subscription joined")
	return sub, nil
}

// Send appends a message to roomID and queues it for every current subscriber,
// including the sender's own channel. Unknown rooms are created on first use.
func (h *Hub) Send(roomID, author, body string) (Message, error) {
	if roomID == "" {
		return Message{}, ErrEmptyRoom
	}
	if h.closed.Load() {
		return Message{}, ErrHubClosed
	}

	room := h.rooms.GetOrCreate(roomID)
	stored, dropped := room.publish(Message{
		Room:   roomID,
		Author: author,
		Body:   body,
	})

	for _, sub := range dropped {
		sub.close()
		h.log.Warn().
			Str("room_id", roomID).
			Str("subscription_id", sub.ID).
			Msg("subscriber queue full, dropping")
	}
	return stored, nil
}

// Leave removes sub from its room. Calling it more than once is a no-op.
func (h *Hub) Leave(sub *Subscription) {
	if sub == nil {
		return
	}
	removed := sub.room.detach(sub)
	if sub.close() || removed {
		h.log.Debug().
			Str("room_id", sub.Room).
			Str("subscription_id", sub.ID).
			Msg("subscription left")
	}
}

// Run blocks until ctx is done, then closes every subscription.
// When a stats interval is configured it periodically logs room counts.
func (h *Hub) Run(ctx context.Context) {
	var tick <-chan time.Time
	if h.statsInterval > 0 {
		ticker := h.clock.Ticker(h.statsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			h.logStats()
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

func (h *Hub) shutdown() {
	h.closed.Store(true)

	count := 0
	h.rooms.Range(func(room *Room) bool {
		for _, sub := range room.detachAll() {
			sub.close()
			count++
		}
		return true
	})
	h.log.Info().Int("rooms", h.rooms.Len()).Int("subscriptions", count).Msg("hub stopped")
}

func (h *Hub) logStats() {
	subscribers := 0
	h.rooms.Range(func(room *Room) bool {
		subscribers += room.SubscriberCount()
		return true
	})
	h.log.Debug().Int("rooms", h.rooms.Len()).Int("subscribers", subscribers).Msg("hub stats")
}

// pump delivers queued messages to the subscription's channel in order.
// A failed or timed-out send drops the subscription.
func (h *Hub) pump(sub *Subscription) {
	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.queue:
			if sub.closed() {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), h.sendTimeout)
			err := sub.ch.Send(ctx, msg)
			cancel()
			if err != nil {
				h.log.Warn().
					Err(err).
					Str("room_id", sub.Room).
					Str("subscription_id", sub.ID).
					Msg("deliver message failed, dropping subscriber")
				h.Leave(sub)
				return
			}
		}
	}
}
