package database

import (
	"context"
	"fmt"
	"time"

	"glowbook/internal/models"
)

// CreateReview stores the review and refreshes the provider's rating summary
// in the same transaction. ErrDuplicate when the booking was already reviewed.
func (db *DB) CreateReview(ctx context.Context, r *models.Review) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `INSERT INTO reviews (
				booking_id, client_id, provider_id, service_id, rating, comment, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.BookingID, r.ClientID, r.ProviderID, r.ServiceID, r.Rating, r.Comment, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE provider_profiles SET
				ratings_average = (SELECT AVG(rating) FROM reviews WHERE provider_id = ?),
				ratings_count = (SELECT COUNT(*) FROM reviews WHERE provider_id = ?),
				updated_at = ?
              WHERE user_id = ?`,
		r.ProviderID, r.ProviderID, now, r.ProviderID,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh provider rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	return nil
}

// ListReviews returns reviews for a provider or a service, newest first.
// Exactly one of providerID and serviceID should be set.
func (db *DB) ListReviews(ctx context.Context, providerID string, serviceID int64) ([]*models.Review, error) {
	query := `SELECT id, booking_id, client_id, provider_id, service_id, rating, comment, created_at FROM reviews `
	var arg any
	if providerID != "" {
		query += `WHERE provider_id = ?`
		arg = providerID
	} else {
		query += `WHERE service_id = ?`
		arg = serviceID
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.BookingID, &r.ClientID, &r.ProviderID, &r.ServiceID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, &r)
	}
	return reviews, rows.Err()
}
