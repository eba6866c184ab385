package service

import (
	"context"
	"fmt"
	"strings"

	"glowbook/internal/domain"
	"glowbook/internal/models"

	"github.com/rs/zerolog"
)

type ReviewService struct {
	reviews  domain.ReviewRepository
	bookings domain.BookingRepository
	logger   *zerolog.Logger
}

func NewReviewService(reviews domain.ReviewRepository, bookings domain.BookingRepository, logger *zerolog.Logger) *ReviewService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReviewService{reviews: reviews, bookings: bookings, logger: logger}
}

// CreateReview records the client's review of a completed booking. The
// provider and service are taken from the booking.
func (s *ReviewService) CreateReview(ctx context.Context, actor models.Actor, bookingID int64, rating int, comment string) (*models.Review, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidInput, models.MinRating, models.MaxRating)
	}

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.ClientID != actor.UserID {
		return nil, ErrForbidden
	}
	if b.Status != models.StatusCompleted {
		return nil, ErrNotReviewable
	}

	review := &models.Review{
		BookingID:  b.ID,
		ClientID:   b.ClientID,
		ProviderID: b.ProviderID,
		ServiceID:  b.ServiceID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("booking_id", b.ID).Str("provider_id", b.ProviderID).Int("rating", rating).Msg("review created")
	return review, nil
}

func (s *ReviewService) ProviderReviews(ctx context.Context, providerID string) ([]*models.Review, error) {
	return s.reviews.ListReviews(ctx, providerID, 0)
}

func (s *ReviewService) ServiceReviews(ctx context.Context, serviceID int64) ([]*models.Review, error) {
	return s.reviews.ListReviews(ctx, "", serviceID)
}
