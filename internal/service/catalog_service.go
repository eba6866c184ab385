package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"glowbook/internal/booking"
	"glowbook/internal/database"
	"glowbook/internal/domain"
	"glowbook/internal/models"

	"github.com/rs/zerolog"
)

type CatalogService struct {
	repo      domain.CatalogRepository
	providers domain.ProviderRepository
	logger    *zerolog.Logger
}

// ProviderOffering is a provider together with the active services that
// matched a browse query.
type ProviderOffering struct {
	*models.ProviderProfile
	Services []*models.Service `json:"services"`
}

func NewCatalogService(repo domain.CatalogRepository, logger *zerolog.Logger) *CatalogService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CatalogService{repo: repo, logger: logger}
}

// WithProviders enables ProvidersOffering.
func (s *CatalogService) WithProviders(providers domain.ProviderRepository) *CatalogService {
	s.providers = providers
	return s
}

var _ booking.PriceSource = (*CatalogService)(nil)

// ServicePrice resolves an active service for pricing. Missing, inactive and
// foreign services all report booking.ErrServiceNotFound.
func (s *CatalogService) ServicePrice(ctx context.Context, providerID string, serviceID int64) (*models.Service, error) {
	svc, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, booking.ErrServiceNotFound
		}
		return nil, err
	}
	if !svc.IsActive || (providerID != "" && svc.ProviderID != providerID) {
		return nil, booking.ErrServiceNotFound
	}
	return svc, nil
}

func (s *CatalogService) ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, fmt.Errorf("%w: min_price exceeds max_price", ErrInvalidInput)
	}
	return s.repo.ListServices(ctx, filter)
}

// ProvidersOffering lists providers with an active service whose title
// contains title (case-insensitive) in the given category. Empty arguments
// match everything. Providers without a profile are left out. Results are
// ordered by rating, best first.
func (s *CatalogService) ProvidersOffering(ctx context.Context, title, category string) ([]*ProviderOffering, error) {
	if s.providers == nil {
		return nil, errors.New("catalog: provider repository not configured")
	}
	active := true
	services, err := s.repo.ListServices(ctx, models.ServiceFilter{Category: strings.TrimSpace(category), IsActive: &active})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(title))
	byProvider := make(map[string][]*models.Service)
	var order []string
	for _, svc := range services {
		if needle != "" && !strings.Contains(strings.ToLower(svc.Title), needle) {
			continue
		}
		if _, seen := byProvider[svc.ProviderID]; !seen {
			order = append(order, svc.ProviderID)
		}
		byProvider[svc.ProviderID] = append(byProvider[svc.ProviderID], svc)
	}

	offerings := make([]*ProviderOffering, 0, len(order))
	for _, providerID := range order {
		profile, err := s.providers.GetProviderProfile(ctx, providerID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				s.logger.Debug().Str("provider_id", providerID).Msg("provider without profile skipped")
				continue
			}
			return nil, err
		}
		offerings = append(offerings, &ProviderOffering{ProviderProfile: profile, Services: byProvider[providerID]})
	}

	sort.SliceStable(offerings, func(i, j int) bool {
		return offerings[i].RatingsAverage > offerings[j].RatingsAverage
	})
	return offerings, nil
}

func (s *CatalogService) ProviderServices(ctx context.Context, providerID string) ([]*models.Service, error) {
	return s.repo.ListServices(ctx, models.ServiceFilter{ProviderID: providerID})
}

func (s *CatalogService) GetService(ctx context.Context, id int64) (*models.Service, error) {
	return s.repo.GetServiceByID(ctx, id)
}

func (s *CatalogService) PriceRange(ctx context.Context, title string) (*models.PriceRange, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return s.repo.PriceRangeByTitle(ctx, title)
}

// CreateService publishes a service owned by the actor. Admins may create on
// behalf of svc.ProviderID.
func (s *CatalogService) CreateService(ctx context.Context, actor models.Actor, svc *models.Service) error {
	if !actor.Role.CanOfferServices() {
		return ErrForbidden
	}
	if !actor.IsAdmin() || svc.ProviderID == "" {
		svc.ProviderID = actor.UserID
	}
	if err := validateService(svc); err != nil {
		return err
	}

	if err := s.repo.CreateService(ctx, svc); err != nil {
		return err
	}
	s.logger.Info().Int64("service_id", svc.ID).Str("provider_id", svc.ProviderID).Str("title", svc.Title).Msg("service created")
	return nil
}

// UpdateService overwrites an existing service. Ownership cannot change.
func (s *CatalogService) UpdateService(ctx context.Context, actor models.Actor, svc *models.Service) error {
	current, err := s.repo.GetServiceByID(ctx, svc.ID)
	if err != nil {
		return err
	}
	if !canEditService(actor, current) {
		return ErrForbidden
	}

	svc.ProviderID = current.ProviderID
	svc.CreatedAt = current.CreatedAt
	if err := validateService(svc); err != nil {
		return err
	}
	return s.repo.UpdateService(ctx, svc)
}

func (s *CatalogService) DeleteService(ctx context.Context, actor models.Actor, id int64) error {
	current, err := s.repo.GetServiceByID(ctx, id)
	if err != nil {
		return err
	}
	if !canEditService(actor, current) {
		return ErrForbidden
	}
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("service_id", id).Str("actor", actor.UserID).Msg("service deleted")
	return nil
}

func canEditService(actor models.Actor, svc *models.Service) bool {
	return actor.IsAdmin() || (actor.Role == models.RoleProvider && actor.UserID == svc.ProviderID)
}

func validateService(svc *models.Service) error {
	svc.Title = strings.TrimSpace(svc.Title)
	switch {
	case svc.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case svc.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	case svc.DurationMinutes < 0:
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}
	return nil
}
