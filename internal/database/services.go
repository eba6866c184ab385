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

const serviceColumns = `id, provider_id, title, description, category, price, duration_minutes,
	location, image_url, is_active, created_at, updated_at`

func scanService(row rowScanner) (*models.Service, error) {
	var s models.Service
	err := row.Scan(
		&s.ID, &s.ProviderID, &s.Title, &s.Description, &s.Category, &s.Price, &s.DurationMinutes,
		&s.Location, &s.ImageURL, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	query := `INSERT INTO services (
				provider_id, title, description, category, price, duration_minutes,
				location, image_url, is_active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		svc.ProviderID,
		svc.Title,
		svc.Description,
		svc.Category,
		svc.Price,
		svc.DurationMinutes,
		svc.Location,
		svc.ImageURL,
		svc.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	svc.ID = id
	svc.CreatedAt = now
	svc.UpdatedAt = now

	db.cacheService(*svc)
	return nil
}

func (db *DB) UpdateService(ctx context.Context, svc *models.Service) error {
	query := `UPDATE services SET title = ?, description = ?, category = ?, price = ?, duration_minutes = ?,
				location = ?, image_url = ?, is_active = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		svc.Title, svc.Description, svc.Category, svc.Price, svc.DurationMinutes,
		svc.Location, svc.ImageURL, svc.IsActive, now, svc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	svc.UpdatedAt = now

	db.forgetService(svc.ID)
	return nil
}

// DeleteService removes a service that was never booked and deactivates one
// that was, keeping booking history intact.
func (db *DB) DeleteService(ctx context.Context, id int64) error {
	defer db.forgetService(id)

	var booked int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE service_id = ?`, id).Scan(&booked); err != nil {
		return fmt.Errorf("failed to count service bookings: %w", err)
	}

	var result sql.Result
	var err error
	if booked > 0 {
		result, err = db.ExecContext(ctx, `UPDATE services SET is_active = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	} else {
		result, err = db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetServiceByID(ctx context.Context, id int64) (*models.Service, error) {
	if svc, ok := db.cachedService(id); ok {
		return &svc, nil
	}

	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = ?`
	svc, err := scanService(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	db.cacheService(*svc)
	return svc, nil
}

func (db *DB) ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error) {
	where := []string{"1 = 1"}
	var args []any

	if filter.ProviderID != "" {
		where = append(where, "provider_id = ?")
		args = append(args, filter.ProviderID)
	}
	if filter.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, filter.Category)
	}
	if filter.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *filter.MaxPrice)
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, *filter.IsActive)
	}

	query := `SELECT ` + serviceColumns + ` FROM services WHERE ` + strings.Join(where, " AND ") + ` ORDER BY title ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// PriceRangeByTitle aggregates active services with the given title across providers.
func (db *DB) PriceRangeByTitle(ctx context.Context, title string) (*models.PriceRange, error) {
	query := `SELECT COUNT(DISTINCT provider_id), COALESCE(MIN(price), 0), COALESCE(MAX(price), 0)
              FROM services WHERE title = ? COLLATE NOCASE AND is_active = 1`
	pr := &models.PriceRange{Title: title}
	if err := db.QueryRowContext(ctx, query, title).Scan(&pr.Providers, &pr.MinPrice, &pr.MaxPrice); err != nil {
		return nil, fmt.Errorf("failed to get price range: %w", err)
	}
	if pr.Providers == 0 {
		return nil, ErrNotFound
	}
	return pr, nil
}

// CountServices is used by the seed loader to skip a populated catalog.
func (db *DB) CountServices(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count services: %w", err)
	}
	return n, nil
}

func (db *DB) cachedService(id int64) (models.Service, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	svc, ok := db.servicesCache[id]
	return svc, ok
}

func (db *DB) cacheService(svc models.Service) {
	db.mu.Lock()
	db.servicesCache[svc.ID] = svc
	db.mu.Unlock()
}

func (db *DB) forgetService(id int64) {
	db.mu.Lock()
	delete(db.servicesCache, id)
	db.mu.Unlock()
}
