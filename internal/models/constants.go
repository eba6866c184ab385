package models

const (
	// DateLayout is the civil date key used on the wire and in storage.
	DateLayout = "2006-01-02"

	// DefaultMaxBookingDays is how far ahead clients may book.
	DefaultMaxBookingDays = 90

	// ReminderHour is the local hour reminders go out.
	ReminderHour = 9

	// CreateRateLimit bookings a single client may submit per window.
	CreateRateLimit = 10

	// CreateRateWindow window for CreateRateLimit, seconds.
	CreateRateWindow = 60

	// AvailabilityCacheTTL seconds an availability entry stays cached.
	AvailabilityCacheTTL = 10 * 60

	MinRating = 1
	MaxRating = 5
)

const (
	ParseModeMarkdown = "Markdown"
)
