package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"glowbook/internal/models"
)

const syncTaskColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

// CreateSyncTask persists a sheet mirror task. The row is the durable copy;
// the worker's Redis and in-memory queues only carry it faster.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	now := time.Now().UTC().Truncate(time.Second)
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}

	result, err := db.ExecContext(ctx, `INSERT INTO sync_queue (
			task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount,
		nullString(task.LastError), formatTimestamp(now), nullTimestamp(task.NextRetryAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingSyncTasks returns up to limit tasks that are due, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue
		WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC, id ASC LIMIT ?`,
		models.SyncStatusPending, models.SyncStatusRetry, formatTimestamp(time.Now()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	return scanSyncTasks(rows)
}

// UpdateSyncTaskStatus records the outcome of an attempt. A retry bumps
// retry_count; completed and failed stamp processed_at.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	set := `status = ?, last_error = ?, next_retry_at = ?`
	args := []any{status, nullString(lastError), nullTimestamp(nextRetryAt)}
	switch status {
	case models.SyncStatusRetry:
		set += `, retry_count = retry_count + 1`
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		set += `, processed_at = ?`
		args = append(args, formatTimestamp(time.Now()))
	}
	args = append(args, id)

	if _, err := db.ExecContext(ctx, `UPDATE sync_queue SET `+set+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue
		WHERE status = ? ORDER BY created_at DESC, id DESC`, models.SyncStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed sync tasks: %w", err)
	}
	return scanSyncTasks(rows)
}

// RequeueFailedSyncTasks moves failed tasks back to pending for another round.
func (db *DB) RequeueFailedSyncTasks(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx, `UPDATE sync_queue
		SET status = ?, retry_count = 0, next_retry_at = NULL, processed_at = NULL
		WHERE status = ?`, models.SyncStatusPending, models.SyncStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue sync tasks: %w", err)
	}
	return result.RowsAffected()
}

func scanSyncTasks(rows *sql.Rows) ([]models.SyncTask, error) {
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var (
			t                      models.SyncTask
			lastError              sql.NullString
			createdAt              string
			processedAt, nextRetry sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount,
			&lastError, &createdAt, &processedAt, &nextRetry); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}

		var err error
		if t.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		if t.ProcessedAt, err = parseNullTimestamp(processedAt); err != nil {
			return nil, err
		}
		if t.NextRetryAt, err = parseNullTimestamp(nextRetry); err != nil {
			return nil, err
		}
		if lastError.Valid {
			msg := lastError.String
			t.LastError = &msg
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func parseNullTimestamp(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
