package dgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"family-taxi/internal/models"
	"family-taxi/internal/observability"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://catalog.api.2gis.com/3.0"

// Client представляет клиент для работы с API 2ГИС
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *CacheService
	limiter    *rate.Limiter
	log        *slog.Logger

	mu            sync.Mutex
	requestsCount int
	requestsLimit int
	resetTime     time.Time
}

// SearchResponse представляет ответ от API поиска адресов 2ГИС
type SearchResponse struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Result struct {
		Total int `json:"total"`
		Items []struct {
			Type     string `json:"type"`
			Name     string `json:"name"`
			FullName string `json:"full_name"`
			Address  struct {
				Name     string `json:"name"`
				FullName string `json:"full_name"`
			} `json:"address"`
			Point struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"point"`
		} `json:"items"`
	} `json:"result"`
}

// RouteResponse представляет ответ от API построения маршрутов 2ГИС
type RouteResponse struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Result struct {
		Routes []struct {
			Distance int    `json:"distance"` // метры
			Duration int    `json:"duration"` // секунды
			Type     string `json:"type"`
		} `json:"routes"`
	} `json:"result"`
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient создает клиент 2ГИС. Не чаще 5 запросов в секунду и не больше dailyLimit в сутки.
func NewClient(apiKey string, dailyLimit int, cache *CacheService, log *slog.Logger, opts ...Option) *Client {
	if cache == nil {
		cache = NewCacheService(nil, false, 0)
	}
	c := &Client{
		apiKey:        apiKey,
		baseURL:       DefaultBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		cache:         cache,
		limiter:       rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		log:           log,
		requestsLimit: dailyLimit,
		resetTime:     time.Now().Add(24 * time.Hour),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkRateLimit проверяет дневной лимит и ждёт своей очереди у limiter
func (c *Client) checkRateLimit(ctx context.Context) error {
	c.mu.Lock()
	if time.Now().After(c.resetTime) {
		c.requestsCount = 0
		c.resetTime = time.Now().Add(24 * time.Hour)
	}
	if c.requestsLimit > 0 && c.requestsCount >= c.requestsLimit {
		c.mu.Unlock()
		return fmt.Errorf("превышен дневной лимит запросов к API 2ГИС (%d)", c.requestsLimit)
	}
	c.requestsCount++
	c.mu.Unlock()

	return c.limiter.Wait(ctx)
}

// SearchAddress выполняет поиск адреса
func (c *Client) SearchAddress(ctx context.Context, query string) (*SearchResponse, error) {
	var result SearchResponse
	params := url.Values{}
	params.Add("q", query)
	params.Add("key", c.apiKey)
	params.Add("fields", "items.point,items.address,items.type,items.full_name")
	params.Add("type", "building,street,adm_div.city,adm_div.district")
	params.Add("locale", "ru_KZ")

	if err := c.fetch(ctx, "items", GeocodingKey(query), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchPlaces - поиск адресов в виде, общем для всех провайдеров
func (c *Client) SearchPlaces(ctx context.Context, query string) ([]models.Place, error) {
	resp, err := c.SearchAddress(ctx, query)
	if err != nil {
		return nil, err
	}
	places := make([]models.Place, 0, len(resp.Result.Items))
	for _, item := range resp.Result.Items {
		address := item.FullName
		if address == "" {
			address = item.Address.FullName
		}
		if address == "" {
			address = item.Address.Name
		}
		places = append(places, models.Place{
			Name:      item.Name,
			Address:   address,
			Latitude:  item.Point.Lat,
			Longitude: item.Point.Lon,
			Source:    "2gis",
		})
	}
	return places, nil
}

// GetRoute получает маршрут между двумя точками
func (c *Client) GetRoute(ctx context.Context, startLat, startLng, endLat, endLng float64) (*RouteResponse, error) {
	var result RouteResponse
	params := url.Values{}
	params.Add("key", c.apiKey)
	params.Add("locale", "ru_KZ")
	params.Add("point1", fmt.Sprintf("%f,%f", startLat, startLng))
	params.Add("point2", fmt.Sprintf("%f,%f", endLat, endLng))
	params.Add("type", "car")

	if err := c.fetch(ctx, "directions", RouteKey(startLat, startLng, endLat, endLng), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RouteDistanceKm - длина первого маршрута в километрах
func (c *Client) RouteDistanceKm(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (float64, error) {
	route, err := c.GetRoute(ctx, fromLat, fromLng, toLat, toLng)
	if err != nil {
		return 0, err
	}
	if len(route.Result.Routes) == 0 {
		return 0, fmt.Errorf("2ГИС не вернул ни одного маршрута")
	}
	return float64(route.Result.Routes[0].Distance) / 1000, nil
}

// fetch выполняет GET запрос с кэшем, лимитами и метриками
func (c *Client) fetch(ctx context.Context, endpoint, cacheKey string, params url.Values, out interface{}) error {
	start := time.Now()

	found, err := c.cache.Get(ctx, cacheKey, out)
	if err != nil {
		c.log.Warn("ошибка чтения кэша 2ГИС", "key", cacheKey, "error", err)
	} else if found {
		observability.TrackDGISRequest(endpoint, "200", true, time.Since(start))
		return nil
	}

	if err := c.checkRateLimit(ctx); err != nil {
		observability.TrackDGISRequest(endpoint, "limited", false, time.Since(start))
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode()), nil)
	if err != nil {
		return fmt.Errorf("ошибка при создании запроса: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.TrackDGISRequest(endpoint, "error", false, time.Since(start))
		return fmt.Errorf("ошибка при выполнении запроса к 2ГИС: %w", err)
	}
	defer resp.Body.Close()
	observability.TrackDGISRequest(endpoint, strconv.Itoa(resp.StatusCode), false, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка при чтении ответа: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("2ГИС вернул ошибку", "endpoint", endpoint, "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("неверный статус ответа 2ГИС: %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("ошибка при декодировании ответа 2ГИС: %w", err)
	}

	if err := c.cache.Set(ctx, cacheKey, out); err != nil {
		c.log.Warn("ошибка записи кэша 2ГИС", "key", cacheKey, "error", err)
	}
	return nil
}
