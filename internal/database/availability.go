package database

import (
	"context"
	"fmt"
	"sort"

	"glowbook/internal/models"
)

// GetAvailability returns the provider's intervals on date in stored order.
func (db *DB) GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, error) {
	query := `SELECT start_minute, end_minute FROM availability_intervals
              WHERE provider_id = ? AND date = ? ORDER BY position ASC`
	rows, err := db.QueryContext(ctx, query, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}
	defer rows.Close()

	var intervals []models.Interval
	for rows.Next() {
		var iv models.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("failed to scan interval: %w", err)
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// GetProviderAvailability returns every stored date for the provider.
func (db *DB) GetProviderAvailability(ctx context.Context, providerID string) (map[string][]models.Interval, error) {
	query := `SELECT date, start_minute, end_minute FROM availability_intervals
              WHERE provider_id = ? ORDER BY date ASC, position ASC`
	rows, err := db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider availability: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.Interval)
	for rows.Next() {
		var date string
		var iv models.Interval
		if err := rows.Scan(&date, &iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("failed to scan interval: %w", err)
		}
		result[date] = append(result[date], iv)
	}
	return result, rows.Err()
}

// SetAvailability replaces the provider's intervals on date. An empty set
// deletes the entry. Callers pass already normalized intervals.
func (db *DB) SetAvailability(ctx context.Context, providerID, date string, intervals []models.Interval) error {
	return db.ReplaceAvailability(ctx, providerID, map[string][]models.Interval{date: intervals})
}

// ReplaceAvailability replaces every date in entries in one transaction.
// Either all dates are written or none are.
func (db *DB) ReplaceAvailability(ctx context.Context, providerID string, entries map[string][]models.Interval) error {
	dates := make([]string, 0, len(entries))
	for date := range entries {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insert := `INSERT INTO availability_intervals (provider_id, date, position, start_minute, end_minute) VALUES (?, ?, ?, ?, ?)`
	for _, date := range dates {
		if _, err := tx.ExecContext(ctx, `DELETE FROM availability_intervals WHERE provider_id = ? AND date = ?`, providerID, date); err != nil {
			return fmt.Errorf("failed to clear availability for %s: %w", date, err)
		}
		for i, iv := range entries[date] {
			if err := iv.Validate(); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, insert, providerID, date, i, int(iv.Start), int(iv.End)); err != nil {
				return fmt.Errorf("failed to insert interval for %s: %w", date, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit availability: %w", err)
	}
	return nil
}
