package utils

import "github.com/google/uuid"

// NewID returns a random identifier for subscriptions and sessions.
func NewID() string {
	return uuid.NewString()
}
