package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"glowbook/internal/models"
)

const profileColumns = `user_id, display_name, bio, years_of_experience, location, specialties,
	telegram_chat_id, ratings_average, ratings_count, created_at, updated_at`

func scanProfile(row rowScanner) (*models.ProviderProfile, error) {
	var p models.ProviderProfile
	var specialties string
	err := row.Scan(
		&p.UserID, &p.DisplayName, &p.Bio, &p.YearsOfExperience, &p.Location, &specialties,
		&p.TelegramChatID, &p.RatingsAverage, &p.RatingsCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(specialties), &p.Specialties); err != nil {
		return nil, fmt.Errorf("failed to decode specialties: %w", err)
	}
	return &p, nil
}

func encodeSpecialties(s []string) (string, error) {
	if s == nil {
		s = []string{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode specialties: %w", err)
	}
	return string(raw), nil
}

// CreateProviderProfile inserts a profile; ErrDuplicate when one exists.
func (db *DB) CreateProviderProfile(ctx context.Context, p *models.ProviderProfile) error {
	specialties, err := encodeSpecialties(p.Specialties)
	if err != nil {
		return err
	}

	query := `INSERT INTO provider_profiles (
				user_id, display_name, bio, years_of_experience, location, specialties,
				telegram_chat_id, ratings_average, ratings_count, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`
	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, query,
		p.UserID, p.DisplayName, p.Bio, p.YearsOfExperience, p.Location, specialties,
		p.TelegramChatID, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create provider profile: %w", err)
	}
	p.RatingsAverage = 0
	p.RatingsCount = 0
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateProviderProfile rewrites the editable fields; ratings are left alone.
func (db *DB) UpdateProviderProfile(ctx context.Context, p *models.ProviderProfile) error {
	specialties, err := encodeSpecialties(p.Specialties)
	if err != nil {
		return err
	}

	query := `UPDATE provider_profiles SET display_name = ?, bio = ?, years_of_experience = ?, location = ?,
				specialties = ?, telegram_chat_id = ?, updated_at = ?
              WHERE user_id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		p.DisplayName, p.Bio, p.YearsOfExperience, p.Location, specialties, p.TelegramChatID, now, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider profile: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (db *DB) GetProviderProfile(ctx context.Context, userID string) (*models.ProviderProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM provider_profiles WHERE user_id = ?`
	p, err := scanProfile(db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get provider profile: %w", err)
	}
	return p, nil
}
