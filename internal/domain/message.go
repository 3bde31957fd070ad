package domain

import (
	"encoding/json"
	"time"
)

// MessageType is the closed set of queued work kinds.
type MessageType string

const (
	TypeNotificationCreate  MessageType = "notification:create"
	TypeDeliveryAssign      MessageType = "delivery:assign"
	TypeOrderStatusUpdate   MessageType = "order:status_update"
	TypePaymentStatusUpdate MessageType = "payment:status_update"
)

func (t MessageType) IsValid() bool {
	switch t {
	case TypeNotificationCreate, TypeDeliveryAssign, TypeOrderStatusUpdate, TypePaymentStatusUpdate:
		return true
	}
	return false
}

// AllMessageTypes lists every valid type, used by the dispatch rate limiter
// and the stats endpoint.
func AllMessageTypes() []MessageType {
	return []MessageType{
		TypeNotificationCreate,
		TypeDeliveryAssign,
		TypeOrderStatusUpdate,
		TypePaymentStatusUpdate,
	}
}

// Priority is carried on every message. Claim order is FIFO by creation
// time; priority does not reorder claims but is persisted and exposed for
// dedicated high-priority workers filtering by type.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Status tracks the lifecycle of a queued message.
//
//	pending → processing → completed
//	pending → processing → pending   (handler failed, retries remain)
//	pending → processing → failed    (retries exhausted)
//
// completed and failed are terminal. Every transition out of processing
// clears the lock columns.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DefaultMaxRetries bounds how many times a failed message is re-queued
// before landing in the terminal failed state.
const DefaultMaxRetries = 3

// Message is the unit of queued work. Payload is the JSON encoding of the
// typed payload struct matching Type; handlers decode it back on dispatch.
type Message struct {
	ID              string          `json:"id"`
	Type            MessageType     `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	Priority        Priority        `json:"priority"`
	Producer        string          `json:"producer"`
	DeduplicationID *string         `json:"deduplication_id,omitempty"`
	Status          Status          `json:"status"`
	RetryCount      int             `json:"retry_count"`
	MaxRetries      int             `json:"max_retries"`
	Error           *string         `json:"error,omitempty"`
	LockedBy        *string         `json:"locked_by,omitempty"`
	LockedUntil     *time.Time      `json:"locked_until,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
}

// Locked reports whether the message holds an unexpired lease at instant now.
func (m *Message) Locked(now time.Time) bool {
	return m.LockedBy != nil && m.LockedUntil != nil && m.LockedUntil.After(now)
}
