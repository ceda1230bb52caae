package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Account is an identity that can obtain a chat token.
type Account struct {
	ID           int64
	Name         string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest session tracking
	CreatedAt    time.Time
}

// Market is a prediction market; its ID doubles as the chat room identifier.
type Market struct {
	ID          string
	Question    string
	Description string
	CreatorID   *int64 // nil for markets seeded without an owner
	CreatedAt   time.Time
}

// AccountStore handles account persistence.
type AccountStore interface {
	// CreateAccount creates a new account with hashed password.
	CreateAccount(ctx context.Context, name, passwordHash string) (*Account, error)

	// CreateGuestAccount creates a guest account bound to a session ID.
	CreateGuestAccount(ctx context.Context, sessionID string) (*Account, error)

	// GetAccountByID retrieves an account by ID.
	GetAccountByID(ctx context.Context, id int64) (*Account, error)

	// GetAccountByName retrieves a registered (non-guest) account by name.
	GetAccountByName(ctx context.Context, name string) (*Account, error)
}

// MarketStore handles market persistence. Outcome and pricing live on-chain and are not stored here.
type MarketStore interface {
	// CreateMarket inserts a market and returns it with ID and timestamp set.
	CreateMarket(ctx context.Context, question, description string, creatorID *int64) (*Market, error)

	// GetMarket retrieves a market by ID.
	GetMarket(ctx context.Context, id string) (*Market, error)

	// ListMarkets lists markets, newest first.
	ListMarkets(ctx context.Context, limit int) ([]*Market, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	AccountStore
	MarketStore

	// Close closes the underlying database connection.
	Close() error
}
