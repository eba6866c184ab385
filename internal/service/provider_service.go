package service

import (
	"context"
	"fmt"
	"strings"

	"glowbook/internal/domain"
	"glowbook/internal/models"

	"github.com/rs/zerolog"
)

type ProviderService struct {
	repo         domain.ProviderRepository
	availability *AvailabilityService
	logger       *zerolog.Logger
}

func NewProviderService(repo domain.ProviderRepository, availability *AvailabilityService, logger *zerolog.Logger) *ProviderService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ProviderService{repo: repo, availability: availability, logger: logger}
}

// ProviderDetails is the public view of a provider.
type ProviderDetails struct {
	*models.ProviderProfile
	Availability map[string][]models.Interval `json:"availability"`
}

func (s *ProviderService) GetProfile(ctx context.Context, actor models.Actor) (*models.ProviderProfile, error) {
	if !actor.Role.CanManageProfile() {
		return nil, ErrForbidden
	}
	return s.repo.GetProviderProfile(ctx, actor.UserID)
}

func (s *ProviderService) CreateProfile(ctx context.Context, actor models.Actor, p *models.ProviderProfile) error {
	if !actor.Role.CanManageProfile() {
		return ErrForbidden
	}
	p.UserID = actor.UserID
	if err := validateProfile(p); err != nil {
		return err
	}
	if err := s.repo.CreateProviderProfile(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Str("provider_id", p.UserID).Msg("provider profile created")
	return nil
}

func (s *ProviderService) UpdateProfile(ctx context.Context, actor models.Actor, p *models.ProviderProfile) error {
	if !actor.Role.CanManageProfile() {
		return ErrForbidden
	}
	p.UserID = actor.UserID
	if err := validateProfile(p); err != nil {
		return err
	}
	return s.repo.UpdateProviderProfile(ctx, p)
}

// Details returns a provider's profile with their declared availability.
func (s *ProviderService) Details(ctx context.Context, providerID string) (*ProviderDetails, error) {
	profile, err := s.repo.GetProviderProfile(ctx, providerID)
	if err != nil {
		return nil, err
	}

	details := &ProviderDetails{ProviderProfile: profile, Availability: map[string][]models.Interval{}}
	if s.availability != nil {
		availability, err := s.availability.ProviderAvailability(ctx, providerID)
		if err != nil {
			return nil, err
		}
		details.Availability = availability
	}
	return details, nil
}

func validateProfile(p *models.ProviderProfile) error {
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.DisplayName == "" {
		return fmt.Errorf("%w: display_name is required", ErrInvalidInput)
	}
	if p.YearsOfExperience < 0 {
		return fmt.Errorf("%w: years_of_experience must not be negative", ErrInvalidInput)
	}
	specialties := make([]string, 0, len(p.Specialties))
	for _, s := range p.Specialties {
		if s = strings.TrimSpace(s); s != "" {
			specialties = append(specialties, s)
		}
	}
	p.Specialties = specialties
	return nil
}
