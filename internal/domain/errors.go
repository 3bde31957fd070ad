package domain

import "errors"

// Sentinel errors used throughout the application.
// The API layer translates these to HTTP status codes via a single mapError function.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidPriority    = errors.New("invalid priority: must be high, normal, or low")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrNotRetryable       = errors.New("message is not in a retryable state")
)
