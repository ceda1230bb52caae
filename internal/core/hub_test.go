package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()

	hub := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func mustJoin(t *testing.T, hub *Hub, room, name string, ch Channel) *Subscription {
	t.Helper()

	sub, err := hub.Join(room, name, ch)
	if err != nil {
		t.Fatalf("join %s: %v", room, err)
	}
	return sub
}

func TestHubJoinFreshRoomThenSend(t *testing.T) {
	hub := newTestHub(t, Options{})
	alice := newRecordingChannel()

	mustJoin(t, hub, "market-1", "alice", alice)
	expectNoMessage(t, alice.msgs)

	sent, err := hub.Send("market-1", "alice", "first")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.ID != 1 {
		t.Fatalf("expected id 1, got %d", sent.ID)
	}

	got := mustMessage(t, alice.msgs)
	if got.ID != 1 || got.Body != "first" || got.Author != "alice" || got.Room != "market-1" {
		t.Fatalf("unexpected echo: %+v", got)
	}
	expectNoMessage(t, alice.msgs)
}

func TestHubJoinReplaysHistoryBeforeLive(t *testing.T) {
	hub := newTestHub(t, Options{})

	for i := range 3 {
		if _, err := hub.Send("market-1", "bob", fmt.Sprintf("old-%d", i)); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	alice := newRecordingChannel()
	mustJoin(t, hub, "market-1", "alice", alice)
	if _, err := hub.Send("market-1", "bob", "live"); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs := mustMessages(t, alice.msgs, 4)
	for i, msg := range msgs {
		if msg.ID != int64(i+1) {
			t.Fatalf("message %d: expected id %d, got %d", i, i+1, msg.ID)
		}
	}
	if msgs[3].Body != "live" {
		t.Fatalf("expected live message last, got %+v", msgs[3])
	}
}

func TestHubBroadcastIsRoomScoped(t *testing.T) {
	hub := newTestHub(t, Options{})
	a := newRecordingChannel()
	b := newRecordingChannel()
	c := newRecordingChannel()

	mustJoin(t, hub, "R1", "a", a)
	mustJoin(t, hub, "R1", "b", b)
	mustJoin(t, hub, "R2", "c", c)

	if _, err := hub.Send("R1", "a", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	got := mustMessage(t, b.msgs)
	if got.Body != "hello" || got.Room != "R1" || got.Author != "a" {
		t.Fatalf("unexpected message for b: %+v", got)
	}
	expectNoMessage(t, b.msgs)

	echo := mustMessage(t, a.msgs)
	if echo.ID != got.ID {
		t.Fatalf("sender echo differs: %+v vs %+v", echo, got)
	}

	expectNoMessage(t, c.msgs)
}

func TestHubSendWithoutJoinCreatesRoom(t *testing.T) {
	hub := newTestHub(t, Options{})

	msg, err := hub.Send("unseen", "ghost", "boo")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID != 1 {
		t.Fatalf("expected id 1, got %d", msg.ID)
	}
	room, ok := hub.Rooms().Get("unseen")
	if !ok {
		t.Fatalf("expected room to be created")
	}
	if len(room.Snapshot()) != 1 {
		t.Fatalf("expected message in history")
	}
}

func TestHubRejectsInvalidArguments(t *testing.T) {
	hub := newTestHub(t, Options{})

	if _, err := hub.Join("", "alice", newRecordingChannel()); !errors.Is(err, ErrEmptyRoom) {
		t.Fatalf("expected ErrEmptyRoom, got %v", err)
	}
	if _, err := hub.Join("market-1", "alice", nil); !errors.Is(err, ErrNilChannel) {
		t.Fatalf("expected ErrNilChannel, got %v", err)
	}
	if _, err := hub.Send("", "alice", "hi"); !errors.Is(err, ErrEmptyRoom) {
		t.Fatalf("expected ErrEmptyRoom, got %v", err)
	}
	if hub.Rooms().Len() != 0 {
		t.Fatalf("invalid calls must not create rooms")
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	hub := newTestHub(t, Options{})
	good1 := newRecordingChannel()
	good2 := newRecordingChannel()

	mustJoin(t, hub, "market-1", "good1", good1)
	bad := mustJoin(t, hub, "market-1", "bad", failingChannel())
	mustJoin(t, hub, "market-1", "good2", good2)

	if _, err := hub.Send("market-1", "good1", "first"); err != nil {
		t.Fatalf("send: %v", err)
	}
	mustMessage(t, good1.msgs)
	mustMessage(t, good2.msgs)
	mustClose(t, bad)

	room, _ := hub.Rooms().Get("market-1")
	if room.HasSubscriber(bad.ID) {
		t.Fatalf("failed subscriber still registered")
	}
	if room.SubscriberCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", room.SubscriberCount())
	}

	if _, err := hub.Send("market-1", "good2", "second"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := mustMessage(t, good1.msgs); got.Body != "second" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got := mustMessage(t, good2.msgs); got.Body != "second" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := newTestHub(t, Options{HistoryCapacity: 2, QueueSize: 1, SendTimeout: time.Minute})
	fast := newRecordingChannel()

	mustJoin(t, hub, "market-1", "fast", fast)
	slow := mustJoin(t, hub, "market-1", "slow", newBlockingChannel(t))

	// The slow pump holds at most one message in Send and the queue holds three more.
	for i := range 6 {
		if _, err := hub.Send("market-1", "fast", fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("send: %v", err)
		}
		if got := mustMessage(t, fast.msgs); got.ID != int64(i+1) {
			t.Fatalf("fast subscriber got id %d, want %d", got.ID, i+1)
		}
	}

	mustClose(t, slow)
	room, _ := hub.Rooms().Get("market-1")
	if room.SubscriberCount() != 1 {
		t.Fatalf("expected only the fast subscriber, got %d", room.SubscriberCount())
	}
}

func TestHubSendTimeoutDropsSubscriber(t *testing.T) {
	hub := newTestHub(t, Options{SendTimeout: 20 * time.Millisecond})
	stuck := mustJoin(t, hub, "market-1", "stuck", newBlockingChannel(t))

	if _, err := hub.Send("market-1", "other", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	mustClose(t, stuck)
}

func TestHubLeaveIsIdempotent(t *testing.T) {
	hub := newTestHub(t, Options{})
	alice := newRecordingChannel()
	bob := newRecordingChannel()

	sub := mustJoin(t, hub, "market-1", "alice", alice)
	mustJoin(t, hub, "market-1", "bob", bob)

	hub.Leave(sub)
	hub.Leave(sub)
	hub.Leave(nil)
	mustClose(t, sub)

	room, _ := hub.Rooms().Get("market-1")
	if room.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", room.SubscriberCount())
	}

	if _, err := hub.Send("market-1", "bob", "after leave"); err != nil {
		t.Fatalf("send: %v", err)
	}
	mustMessage(t, bob.msgs)
	expectNoMessage(t, alice.msgs)
}

func TestHubDuplicateJoinCreatesIndependentSubscriptions(t *testing.T) {
	hub := newTestHub(t, Options{})
	ch := newRecordingChannel()

	first := mustJoin(t, hub, "market-1", "alice", ch)
	second := mustJoin(t, hub, "market-1", "alice", ch)
	if first.ID == second.ID {
		t.Fatalf("expected distinct subscription ids")
	}

	if _, err := hub.Send("market-1", "alice", "twice"); err != nil {
		t.Fatalf("send: %v", err)
	}
	mustMessages(t, ch.msgs, 2)

	hub.Leave(first)
	if _, err := hub.Send("market-1", "alice", "once"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := mustMessage(t, ch.msgs); got.Body != "once" {
		t.Fatalf("unexpected message: %+v", got)
	}
	expectNoMessage(t, ch.msgs)
}

func TestHubJoinRaceDeliversExactlyOnce(t *testing.T) {
	hub := newTestHub(t, Options{})

	for i := range 100 {
		room := fmt.Sprintf("race-%d", i)
		ch := newRecordingChannel()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := hub.Send(room, "racer", "race"); err != nil {
				t.Errorf("send: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := hub.Join(room, "joiner", ch); err != nil {
				t.Errorf("join: %v", err)
			}
		}()
		wg.Wait()

		if _, err := hub.Send(room, "racer", "marker"); err != nil {
			t.Fatalf("send marker: %v", err)
		}

		raced := 0
		for {
			msg := mustMessage(t, ch.msgs)
			if msg.Body == "marker" {
				break
			}
			if msg.Body == "race" {
				raced++
			}
		}
		if raced != 1 {
			t.Fatalf("iteration %d: race message seen %d times", i, raced)
		}
	}
}

func TestHubPreservesOrderUnderConcurrentSenders(t *testing.T) {
	const (
		senders   = 4
		perSender = 50
	)
	hub := newTestHub(t, Options{QueueSize: senders * perSender})
	watcher := newRecordingChannel()
	mustJoin(t, hub, "market-1", "watcher", watcher)

	var wg sync.WaitGroup
	for s := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perSender {
				if _, err := hub.Send("market-1", fmt.Sprintf("s%d", s), fmt.Sprintf("%d", i)); err != nil {
					t.Errorf("send: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	msgs := mustMessages(t, watcher.msgs, senders*perSender)
	for i, msg := range msgs {
		if msg.ID != int64(i+1) {
			t.Fatalf("position %d: expected id %d, got %d", i, i+1, msg.ID)
		}
	}
	expectNoMessage(t, watcher.msgs)
}

func TestHubRunClosesSubscriptionsOnShutdown(t *testing.T) {
	hub := NewHub(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	sub := mustJoin(t, hub, "market-1", "alice", newRecordingChannel())
	cancel()
	<-stopped

	mustClose(t, sub)
	if _, err := hub.Join("market-1", "bob", newRecordingChannel()); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
	if _, err := hub.Send("market-1", "bob", "late"); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
}
