package core

import "errors"

// Error codes reported to clients.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeMarketNotFound = "market_not_found"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeUnavailable    = "unavailable"
)

var (
	ErrEmptyRoom  = errors.New("room id is required")
	ErrNilChannel = errors.New("channel is required")
	ErrHubClosed  = errors.New("hub closed")
	ErrReplayFull = errors.New("history does not fit subscription queue")
)

// ErrorCode maps a core error to its client-facing code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrHubClosed), errors.Is(err, ErrReplayFull):
		return ErrCodeUnavailable
	default:
		return ErrCodeBadRequest
	}
}
