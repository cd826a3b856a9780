// Package gmaps - поиск адресов и расстояние по дорогам через Google Maps.
// Используется как запасной провайдер, когда 2ГИС недоступен или не настроен.
package gmaps

import (
	"context"
	"fmt"

	"family-taxi/internal/models"
	"family-taxi/internal/observability"

	"googlemaps.github.io/maps"
)

type Client struct {
	client   *maps.Client
	language string
}

func NewClient(apiKey string, opts ...maps.ClientOption) (*Client, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать клиент Google Maps: %w", err)
	}
	return &Client{client: c, language: "ru"}, nil
}

func (c *Client) SearchPlaces(ctx context.Context, query string) ([]models.Place, error) {
	resp, err := c.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    query,
		Language: c.language,
	})
	track("textsearch", err)
	if err != nil {
		return nil, fmt.Errorf("ошибка Google Places: %w", err)
	}

	places := make([]models.Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		places = append(places, models.Place{
			Name:      r.Name,
			Address:   r.FormattedAddress,
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
			Source:    "google",
		})
	}
	return places, nil
}

func (c *Client) RouteDistanceKm(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (float64, error) {
	routes, _, err := c.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", fromLat, fromLng),
		Destination: fmt.Sprintf("%f,%f", toLat, toLng),
		Mode:        maps.TravelModeDriving,
		Language:    c.language,
	})
	track("directions", err)
	if err != nil {
		return 0, fmt.Errorf("ошибка Google Directions: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("Google Directions не вернул маршрут")
	}

	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return float64(meters) / 1000, nil
}

func track(endpoint string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.GoogleMapsRequestsTotal.WithLabelValues(endpoint, status).Inc()
}
