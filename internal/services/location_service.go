package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"family-taxi/internal/models"
	"family-taxi/internal/repository"
)

// LocationService - сохранённые места пользователя и поиск адресов
type LocationService struct {
	locations *repository.LocationRepository
	geocoders []Geocoder
	log       *slog.Logger
}

// NewLocationService принимает геокодеры в порядке приоритета. Пустые (nil) пропускаются.
func NewLocationService(locations *repository.LocationRepository, log *slog.Logger, geocoders ...Geocoder) *LocationService {
	s := &LocationService{locations: locations, log: log}
	for _, g := range geocoders {
		if g != nil {
			s.geocoders = append(s.geocoders, g)
		}
	}
	return s
}

func (s *LocationService) List(ctx context.Context, p models.Principal) ([]models.Location, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	locations, err := s.locations.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения мест: %w", err)
	}
	return locations, nil
}

type CreateLocationInput struct {
	Name       string
	Address    string
	Latitude   float64
	Longitude  float64
	IsFavorite bool
}

func (s *LocationService) Create(ctx context.Context, p models.Principal, in CreateLocationInput) (*models.Location, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Address) == "" {
		return nil, fmt.Errorf("%w: название и адрес обязательны", ErrValidation)
	}
	if err := validateCoordinates(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}
	loc := &models.Location{
		UserID:     p.UserID,
		Name:       strings.TrimSpace(in.Name),
		Address:    strings.TrimSpace(in.Address),
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		IsFavorite: in.IsFavorite,
	}
	if err := s.locations.Create(ctx, loc); err != nil {
		return nil, fmt.Errorf("ошибка сохранения места: %w", err)
	}
	return loc, nil
}

// Search ищет сначала среди сохранённых мест пользователя, затем у первого
// геокодера, который ответил без ошибки
func (s *LocationService) Search(ctx context.Context, p models.Principal, query string) ([]models.Place, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: пустой поисковый запрос", ErrValidation)
	}

	saved, err := s.locations.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения мест: %w", err)
	}
	needle := strings.ToLower(query)
	places := make([]models.Place, 0)
	for _, loc := range saved {
		if strings.Contains(strings.ToLower(loc.Name), needle) || strings.Contains(strings.ToLower(loc.Address), needle) {
			places = append(places, models.Place{
				Name:      loc.Name,
				Address:   loc.Address,
				Latitude:  loc.Latitude,
				Longitude: loc.Longitude,
				Source:    "saved",
			})
		}
	}

	for _, g := range s.geocoders {
		found, err := g.SearchPlaces(ctx, query)
		if err != nil {
			s.log.Warn("ошибка поиска адреса", "query", query, "error", err)
			continue
		}
		places = append(places, found...)
		break
	}
	return places, nil
}
