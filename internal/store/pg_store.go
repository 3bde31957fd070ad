package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markethub/notify-queue/internal/domain"
)

// PgStore implements MessageStore and NotificationStore on PostgreSQL.
// Both live on the same pool because handlers write notifications into the
// same database the queue rows live in.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

var (
	_ MessageStore      = (*PgStore)(nil)
	_ NotificationStore = (*PgStore)(nil)
)

const messageColumns = `
	id, type, payload, priority, producer, deduplication_id, status,
	retry_count, max_retries, error, locked_by, locked_until,
	created_at, processed_at`

func (s *PgStore) CreateMessage(ctx context.Context, m *domain.Message) (string, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO message_queue
			(id, type, payload, priority, producer, deduplication_id, status,
			 retry_count, max_retries, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.Type, m.Payload, m.Priority, m.Producer, m.DeduplicationID,
		m.Status, m.RetryCount, m.MaxRetries, m.CreatedAt,
	)
	if err != nil {
		return "", false, fmt.Errorf("insert message: %w", err)
	}

	if m.DeduplicationID != nil {
		// The unique constraint on deduplication_id makes the dual write
		// atomic: losing the race means another enqueuer's message already
		// owns the key, so this insert is discarded with the transaction.
		tag, err := tx.Exec(ctx, `
			INSERT INTO processed_messages (deduplication_id, message_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (deduplication_id) DO NOTHING`,
			*m.DeduplicationID, m.ID, m.CreatedAt,
		)
		if err != nil {
			return "", false, fmt.Errorf("insert dedup record: %w", err)
		}
		if tag.RowsAffected() == 0 {
			if err := tx.Rollback(ctx); err != nil {
				return "", false, fmt.Errorf("rollback after dedup conflict: %w", err)
			}
			existing, found, err := s.FindByDeduplicationID(ctx, *m.DeduplicationID)
			if err != nil {
				return "", false, err
			}
			if !found {
				return "", false, errors.New("dedup conflict but no existing message found")
			}
			return existing, false, nil
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("commit: %w", err)
	}
	return m.ID, true, nil
}

func (s *PgStore) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM message_queue WHERE id = $1`, id)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return m, err
}

func (s *PgStore) FindByDeduplicationID(ctx context.Context, key string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT message_id FROM processed_messages WHERE deduplication_id = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query dedup record: %w", err)
	}
	return id, true, nil
}

// ClaimBatch runs the select-then-lock sequence in one transaction.
// FOR UPDATE SKIP LOCKED lets concurrent workers claim disjoint rows
// without serializing on each other.
func (s *PgStore) ClaimBatch(ctx context.Context, opts ClaimOptions) ([]*domain.Message, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		SELECT ` + messageColumns + `
		FROM message_queue
		WHERE status = 'pending'
		  AND (locked_by IS NULL OR locked_until < NOW())`
	args := []any{}
	if len(opts.Types) > 0 {
		types := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		query += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}
	args = append(args, opts.BatchSize)
	query += fmt.Sprintf(`
		ORDER BY created_at ASC
		LIMIT $%d
		FOR UPDATE SKIP LOCKED`, len(args))

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select claimable: %w", err)
	}
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, tx.Commit(ctx)
	}

	lockedUntil := time.Now().UTC().Add(opts.LockDuration)
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}

	_, err = tx.Exec(ctx, `
		UPDATE message_queue
		SET locked_by = $1, locked_until = $2
		WHERE id = ANY($3)`,
		opts.ProcessorID, lockedUntil, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("stamp lease: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	for _, m := range messages {
		pid, until := opts.ProcessorID, lockedUntil
		m.LockedBy = &pid
		m.LockedUntil = &until
	}
	return messages, nil
}

func (s *PgStore) MarkProcessing(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE message_queue SET status = 'processing' WHERE id = $1`, id)
	return err
}

func (s *PgStore) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE message_queue
		SET status = 'completed', processed_at = NOW(),
		    locked_by = NULL, locked_until = NULL
		WHERE id = $1`, id)
	return err
}

func (s *PgStore) ReleaseForRetry(ctx context.Context, id string, retryCount int, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE message_queue
		SET status = 'pending', retry_count = $1, error = $2,
		    locked_by = NULL, locked_until = NULL
		WHERE id = $3`, retryCount, errMsg, id)
	return err
}

func (s *PgStore) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE message_queue
		SET status = 'failed', retry_count = $1, error = $2, processed_at = NOW(),
		    locked_by = NULL, locked_until = NULL
		WHERE id = $3`, retryCount, errMsg, id)
	return err
}

func (s *PgStore) RequeueFailed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE message_queue
		SET status = 'pending', retry_count = 0, error = NULL, processed_at = NULL
		WHERE id = $1 AND status = 'failed'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotRetryable
	}
	return nil
}

func (s *PgStore) DeleteDedupBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM processed_messages WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete dedup records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgStore) Stats(ctx context.Context) (QueueStats, error) {
	var st QueueStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			(SELECT COUNT(*) FROM processed_messages)
		FROM message_queue`,
	).Scan(&st.Pending, &st.Processing, &st.Completed, &st.Failed, &st.DedupRecords)
	if err != nil {
		return QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	return st, nil
}

// ---- notifications ----

func (s *PgStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications
			(id, user_id, title, message, type, related_entity_type,
			 related_entity_id, action_url, data, is_read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type,
		nullable(n.RelatedEntityType), nullable(n.RelatedEntityID),
		nullable(n.ActionURL), n.Data, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PgStore) ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, message, type, related_entity_type,
		       related_entity_id, action_url, data, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var result []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var entityType, entityID, actionURL *string
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type,
			&entityType, &entityID, &actionURL, &n.Data, &n.IsRead, &n.CreatedAt,
		); err != nil {
			return nil, err
		}
		n.RelatedEntityType = deref(entityType)
		n.RelatedEntityID = deref(entityID)
		n.ActionURL = deref(actionURL)
		result = append(result, &n)
	}
	return result, rows.Err()
}

func (s *PgStore) MarkNotificationRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PgStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&n)
	return n, err
}

// ---- helpers ----

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID, &m.Type, &m.Payload, &m.Priority, &m.Producer,
		&m.DeduplicationID, &m.Status, &m.RetryCount, &m.MaxRetries,
		&m.Error, &m.LockedBy, &m.LockedUntil, &m.CreatedAt, &m.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessages(rows pgx.Rows) ([]*domain.Message, error) {
	defer rows.Close()
	var result []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
