package core

import "time"

// Message is the domain model for a chat message in a market room.
// ID and CreatedAt are assigned by the room on append, never by the client.
type Message struct {
	ID        int64
	Room      string
	Author    string
	Body      string
	CreatedAt time.Time
}
