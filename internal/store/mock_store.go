package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/markethub/notify-queue/internal/domain"
)

// MockStore is a hand-written, in-memory implementation of MessageStore and
// NotificationStore used in unit tests. No mock-generation library needed.
// All operations hold the mutex for their full duration, so ClaimBatch is
// atomic the same way the transactional pg implementation is.
type MockStore struct {
	mu            sync.Mutex
	messages      map[string]*domain.Message
	dedup         map[string]string // deduplication key → message id
	dedupCreated  map[string]time.Time
	notifications map[string]*domain.Notification

	// Optional error overrides — set in tests to simulate failure paths.
	CreateMessageErr      error
	ClaimBatchErr         error
	CreateNotificationErr error

	// NotifyHook, when set, is called before every notification insert.
	// Returning an error makes that single insert fail.
	NotifyHook func(n *domain.Notification) error
}

var (
	_ MessageStore      = (*MockStore)(nil)
	_ NotificationStore = (*MockStore)(nil)
)

func NewMockStore() *MockStore {
	return &MockStore{
		messages:      make(map[string]*domain.Message),
		dedup:         make(map[string]string),
		dedupCreated:  make(map[string]time.Time),
		notifications: make(map[string]*domain.Notification),
	}
}

func (m *MockStore) CreateMessage(_ context.Context, msg *domain.Message) (string, bool, error) {
	if m.CreateMessageErr != nil {
		return "", false, m.CreateMessageErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.DeduplicationID != nil {
		if existing, ok := m.dedup[*msg.DeduplicationID]; ok {
			return existing, false, nil
		}
		m.dedup[*msg.DeduplicationID] = msg.ID
		m.dedupCreated[*msg.DeduplicationID] = msg.CreatedAt
	}
	clone := *msg
	m.messages[msg.ID] = &clone
	return msg.ID, true, nil
}

func (m *MockStore) GetMessage(_ context.Context, id string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *msg
	return &clone, nil
}

func (m *MockStore) FindByDeduplicationID(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.dedup[key]
	return id, ok, nil
}

func (m *MockStore) ClaimBatch(_ context.Context, opts ClaimOptions) ([]*domain.Message, error) {
	if m.ClaimBatchErr != nil {
		return nil, m.ClaimBatchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var eligible []*domain.Message
	for _, msg := range m.messages {
		if msg.Status != domain.StatusPending || msg.Locked(now) {
			continue
		}
		if len(opts.Types) > 0 && !containsType(opts.Types, msg.Type) {
			continue
		}
		eligible = append(eligible, msg)
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	if len(eligible) > opts.BatchSize {
		eligible = eligible[:opts.BatchSize]
	}

	until := now.Add(opts.LockDuration)
	claimed := make([]*domain.Message, len(eligible))
	for i, msg := range eligible {
		pid, u := opts.ProcessorID, until
		msg.LockedBy = &pid
		msg.LockedUntil = &u
		clone := *msg
		claimed[i] = &clone
	}
	return claimed, nil
}

func (m *MockStore) MarkProcessing(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		msg.Status = domain.StatusProcessing
	}
	return nil
}

func (m *MockStore) MarkCompleted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		now := time.Now().UTC()
		msg.Status = domain.StatusCompleted
		msg.ProcessedAt = &now
		msg.LockedBy = nil
		msg.LockedUntil = nil
	}
	return nil
}

func (m *MockStore) ReleaseForRetry(_ context.Context, id string, retryCount int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		msg.Status = domain.StatusPending
		msg.RetryCount = retryCount
		msg.Error = &errMsg
		msg.LockedBy = nil
		msg.LockedUntil = nil
	}
	return nil
}

func (m *MockStore) MarkFailed(_ context.Context, id string, retryCount int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		now := time.Now().UTC()
		msg.Status = domain.StatusFailed
		msg.RetryCount = retryCount
		msg.Error = &errMsg
		msg.ProcessedAt = &now
		msg.LockedBy = nil
		msg.LockedUntil = nil
	}
	return nil
}

func (m *MockStore) RequeueFailed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	if msg.Status != domain.StatusFailed {
		return domain.ErrNotRetryable
	}
	msg.Status = domain.StatusPending
	msg.RetryCount = 0
	msg.Error = nil
	msg.ProcessedAt = nil
	return nil
}

func (m *MockStore) DeleteDedupBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key, created := range m.dedupCreated {
		if created.Before(cutoff) {
			delete(m.dedup, key)
			delete(m.dedupCreated, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockStore) Stats(_ context.Context) (QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st QueueStats
	for _, msg := range m.messages {
		switch msg.Status {
		case domain.StatusPending:
			st.Pending++
		case domain.StatusProcessing:
			st.Processing++
		case domain.StatusCompleted:
			st.Completed++
		case domain.StatusFailed:
			st.Failed++
		}
	}
	st.DedupRecords = len(m.dedup)
	return st, nil
}

// ---- notifications ----

func (m *MockStore) CreateNotification(_ context.Context, n *domain.Notification) error {
	if m.CreateNotificationErr != nil {
		return m.CreateNotificationErr
	}
	if m.NotifyHook != nil {
		if err := m.NotifyHook(n); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *n
	m.notifications[n.ID] = &clone
	return nil
}

func (m *MockStore) ListNotificationsByUser(_ context.Context, userID string, limit int) ([]*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			clone := *n
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockStore) MarkNotificationRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (m *MockStore) CountUnread(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// ---- test inspection helpers ----

// MessageCount returns the number of message rows, optionally filtered by status.
func (m *MockStore) MessageCount(statuses ...domain.Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(statuses) == 0 {
		return len(m.messages)
	}
	count := 0
	for _, msg := range m.messages {
		for _, s := range statuses {
			if msg.Status == s {
				count++
			}
		}
	}
	return count
}

// NotificationCount returns the total number of notification rows.
func (m *MockStore) NotificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

// Notifications returns a snapshot of all notification rows.
func (m *MockStore) Notifications() []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		clone := *n
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// SetDedupCreated backdates a dedup record, used by retention sweep tests.
func (m *MockStore) SetDedupCreated(key string, created time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dedup[key]; ok {
		m.dedupCreated[key] = created
	}
}

func containsType(types []domain.MessageType, t domain.MessageType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
