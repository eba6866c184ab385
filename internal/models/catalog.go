package models

import "time"

type Service struct {
	ID              int64     `json:"id" yaml:"id"`
	ProviderID      string    `json:"provider_id" yaml:"provider_id"`
	Title           string    `json:"title" yaml:"title"`
	Description     string    `json:"description" yaml:"description"`
	Category        string    `json:"category" yaml:"category"`
	Price           float64   `json:"price" yaml:"price"`
	DurationMinutes int       `json:"duration_minutes" yaml:"duration_minutes"`
	Location        string    `json:"location,omitempty" yaml:"location"`
	ImageURL        string    `json:"image_url,omitempty" yaml:"image_url"`
	IsActive        bool      `json:"is_active" yaml:"is_active"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

// ServiceFilter narrows catalog listings; nil fields are ignored.
type ServiceFilter struct {
	ProviderID string
	Category   string
	MinPrice   *float64
	MaxPrice   *float64
	IsActive   *bool
}

// PriceRange summarizes one service title across providers.
type PriceRange struct {
	Title     string  `json:"title"`
	MinPrice  float64 `json:"min_price"`
	MaxPrice  float64 `json:"max_price"`
	Providers int     `json:"providers"`
}

type ProviderProfile struct {
	UserID            string    `json:"user_id"`
	DisplayName       string    `json:"display_name"`
	Bio               string    `json:"bio"`
	YearsOfExperience int       `json:"years_of_experience"`
	Location          string    `json:"location"`
	Specialties       []string  `json:"specialties"`
	TelegramChatID    int64     `json:"telegram_chat_id,omitempty"`
	RatingsAverage    float64   `json:"ratings_average"`
	RatingsCount      int       `json:"ratings_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Review struct {
	ID         int64     `json:"id"`
	BookingID  int64     `json:"booking_id"`
	ClientID   string    `json:"client_id"`
	ProviderID string    `json:"provider_id"`
	ServiceID  int64     `json:"service_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
