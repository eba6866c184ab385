package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"glowbook/internal/models"
)

const bookingColumns = `id, client_id, provider_id, service_id, service_title, scheduled_at,
	notes, status, total_price, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var scheduledAt string
	if err := row.Scan(
		&b.ID, &b.ClientID, &b.ProviderID, &b.ServiceID, &b.ServiceTitle, &scheduledAt,
		&b.Notes, &b.Status, &b.TotalPrice, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	at, err := parseTimestamp(scheduledAt)
	if err != nil {
		return nil, err
	}
	b.ScheduledAt = at
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBooking(ctx context.Context, ex execer, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				client_id, provider_id, service_id, service_title, scheduled_at,
				notes, status, total_price, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := ex.ExecContext(ctx, query,
		booking.ClientID,
		booking.ProviderID,
		booking.ServiceID,
		booking.ServiceTitle,
		formatTimestamp(booking.ScheduledAt),
		booking.Notes,
		booking.Status,
		booking.TotalPrice,
		1,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// CreateBooking inserts a booking; the active-slot index still rejects doubles.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return insertBooking(ctx, db, booking)
}

// CreateBookingWithLock checks the provider's slot and inserts in one transaction.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var taken int
	queryCount := `SELECT COUNT(*) FROM bookings WHERE provider_id = ? AND scheduled_at = ? AND status IN (?, ?)`
	err = tx.QueryRowContext(ctx, queryCount, booking.ProviderID, formatTimestamp(booking.ScheduledAt),
		models.StatusPending, models.StatusConfirmed).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check slot in tx: %w", err)
	}
	if taken > 0 {
		return ErrSlotTaken
	}

	if err := insertBooking(ctx, tx, booking); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns the user's bookings, newest created first. An empty
// Party matches bookings where the user is either client or provider.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	var where []string
	var args []any

	switch filter.Party {
	case models.PartyClient:
		where = append(where, "client_id = ?")
		args = append(args, filter.UserID)
	case models.PartyProvider:
		where = append(where, "provider_id = ?")
		args = append(args, filter.UserID)
	default:
		where = append(where, "(client_id = ? OR provider_id = ?)")
		args = append(args, filter.UserID, filter.UserID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return scanBookings(rows)
}

// GetBookingsInRange returns bookings scheduled in [from, to). An empty
// providerID matches every provider; statuses narrows the result when given.
func (db *DB) GetBookingsInRange(ctx context.Context, providerID string, from, to time.Time, statuses ...models.Status) ([]*models.Booking, error) {
	where := []string{"scheduled_at >= ?", "scheduled_at < ?"}
	args := []any{formatTimestamp(from), formatTimestamp(to)}
	if providerID != "" {
		where = append(where, "provider_id = ?")
		args = append(args, providerID)
	}
	if len(statuses) > 0 {
		marks := make([]string, len(statuses))
		for i, s := range statuses {
			marks[i] = "?"
			args = append(args, s)
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY scheduled_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by range: %w", err)
	}
	return scanBookings(rows)
}

// ActiveStartsInRange lists scheduled_at of the provider's pending and
// confirmed bookings in [from, to), skipping excludeID.
func (db *DB) ActiveStartsInRange(ctx context.Context, providerID string, from, to time.Time, excludeID int64) ([]time.Time, error) {
	query := `SELECT scheduled_at FROM bookings
              WHERE provider_id = ? AND scheduled_at >= ? AND scheduled_at < ?
                AND status IN (?, ?) AND id <> ?
              ORDER BY scheduled_at ASC`
	rows, err := db.QueryContext(ctx, query, providerID, formatTimestamp(from), formatTimestamp(to),
		models.StatusPending, models.StatusConfirmed, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked slots: %w", err)
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan booked slot: %w", err)
		}
		at, err := parseTimestamp(raw)
		if err != nil {
			return nil, err
		}
		starts = append(starts, at)
	}
	return starts, rows.Err()
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.Status) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// RescheduleBookingWithVersion moves a booking to a new start and notes.
func (db *DB) RescheduleBookingWithVersion(ctx context.Context, id, fromVersion int64, scheduledAt time.Time, notes string) error {
	query := `UPDATE bookings SET scheduled_at = ?, notes = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, formatTimestamp(scheduledAt), notes, time.Now().UTC(), id, fromVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to reschedule booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}
