package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingChannel struct {
	msgs chan Message
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{msgs: make(chan Message, 1024)}
}

func (c *recordingChannel) Send(ctx context.Context, msg Message) error {
	select {
	case c.msgs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errChannelClosed = errors.New("channel closed")

func failingChannel() Channel {
	return ChannelFunc(func(context.Context, Message) error {
		return errChannelClosed
	})
}

// blockingChannel never completes a send until released or the send times out.
type blockingChannel struct {
	release chan struct{}
}

func newBlockingChannel(t *testing.T) *blockingChannel {
	t.Helper()
	c := &blockingChannel{release: make(chan struct{})}
	t.Cleanup(func() { close(c.release) })
	return c
}

func (c *blockingChannel) Send(ctx context.Context, _ Message) error {
	select {
	case <-c.release:
		return errChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func mustMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("expected message not received")
		return Message{}
	}
}

func mustMessages(t *testing.T, ch <-chan Message, n int) []Message {
	t.Helper()

	out := make([]Message, 0, n)
	for range n {
		out = append(out, mustMessage(t, ch))
	}
	return out
}

func expectNoMessage(t *testing.T, ch <-chan Message) {
	t.Helper()

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func mustClose(t *testing.T, sub *Subscription) {
	t.Helper()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription %s was not closed", sub.ID)
	}
}
