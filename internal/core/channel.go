package core

import "context"

// Channel is the outbound half of a client connection as supplied by the transport layer.
// Send must honour ctx so a stuck peer cannot hold its subscription pump forever.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// ChannelFunc adapts a plain function to Channel.
type ChannelFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f ChannelFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
