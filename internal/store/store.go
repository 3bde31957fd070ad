package store

import (
	"context"
	"time"

	"github.com/markethub/notify-queue/internal/domain"
)

// ClaimOptions parameterizes a batch claim. Types, when non-empty, restricts
// the claim to a subset of message types so dedicated workers can own a
// message class.
type ClaimOptions struct {
	BatchSize    int
	LockDuration time.Duration
	ProcessorID  string
	Types        []domain.MessageType
}

// QueueStats is a point-in-time snapshot of queue depth per status plus the
// size of the dedup index, exposed by the ops API and the metrics poller.
type QueueStats struct {
	Pending      int `json:"pending"`
	Processing   int `json:"processing"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	DedupRecords int `json:"dedup_records"`
}

// MessageStore defines all persistence operations the queue service needs.
// The pgx implementation is in pg_store.go; tests use a hand-written
// in-memory implementation (mock_store.go).
//
// ClaimBatch must be atomic: under concurrent callers no message may be
// handed to two claimants while a lease is unexpired.
type MessageStore interface {
	// CreateMessage persists m. If m.DeduplicationID is set and already
	// registered, no row is written and the previously mapped message id is
	// returned with created=false. The message insert and the dedup-index
	// insert happen in one transaction.
	CreateMessage(ctx context.Context, m *domain.Message) (existingID string, created bool, err error)

	GetMessage(ctx context.Context, id string) (*domain.Message, error)

	// FindByDeduplicationID returns the message id mapped to key, if any.
	FindByDeduplicationID(ctx context.Context, key string) (string, bool, error)

	// ClaimBatch selects up to BatchSize pending messages whose lease is
	// absent or expired, oldest first, and stamps each with the claimant's
	// lease before returning them.
	ClaimBatch(ctx context.Context, opts ClaimOptions) ([]*domain.Message, error)

	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error

	// ReleaseForRetry returns a message to pending with the lease cleared,
	// recording the attempt's error and the incremented retry count.
	ReleaseForRetry(ctx context.Context, id string, retryCount int, errMsg string) error

	// MarkFailed moves a message to the terminal failed state with the lease
	// cleared.
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error

	// RequeueFailed resets a terminally failed message back to pending with
	// a zero retry count. Operator surface only.
	RequeueFailed(ctx context.Context, id string) error

	// DeleteDedupBefore purges dedup-index rows created before cutoff and
	// returns the number removed. Message rows are untouched.
	DeleteDedupBefore(ctx context.Context, cutoff time.Time) (int, error)

	Stats(ctx context.Context) (QueueStats, error)
}

// NotificationStore is the produced side: handlers create rows, dashboards
// list and mark them read.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}
