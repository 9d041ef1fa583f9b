// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package weather looks up forecasts and place names from Open-Meteo.
//
// Lookups are best effort. A transport or decode failure is logged as a
// TransportError and the caller receives nil or an empty list. Successful
// results are cached by rounded coordinates or normalized query.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/relay/internal/cache"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
)

const (
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

	endpointForecast = "forecast"
	endpointGeocode  = "geocode"

	maxBodyBytes = 4 << 20
)

// Config configures a Service.
type Config struct {
	ForecastURL  string
	GeocodingURL string
	Timeout      time.Duration

	CacheTTL     time.Duration
	LocationTTL  time.Duration
	CacheEntries int

	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int

	ForecastDays int
	MaxResults   int
	Language     string

	Breaker    BreakerConfig
	HTTPClient *http.Client
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		ForecastURL:       DefaultForecastURL,
		GeocodingURL:      DefaultGeocodingURL,
		Timeout:           10 * time.Second,
		CacheTTL:          10 * time.Minute,
		LocationTTL:       24 * time.Hour,
		CacheEntries:      256,
		RequestsPerSecond: 2,
		Burst:             4,
		ForecastDays:      7,
		MaxResults:        10,
		Language:          "en",
		Breaker:           DefaultBreakerConfig(),
	}
}

// Service serves cached weather and geocoding lookups.
type Service struct {
	cfg       Config
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *breaker
	forecasts *cache.Cache[*models.Forecast]
	locations *cache.Cache[[]models.Location]
}

// New creates a Service. Zero fields in cfg take their defaults.
func New(cfg Config) *Service {
	def := DefaultConfig()
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = def.ForecastURL
	}
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = def.GeocodingURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.LocationTTL <= 0 {
		cfg.LocationTTL = def.LocationTTL
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = def.ForecastDays
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = def.Breaker
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Service{
		cfg:       cfg,
		client:    client,
		limiter:   rate.NewLimiter(limit, burst),
		breaker:   newBreaker("open-meteo", cfg.Breaker),
		forecasts: cache.New[*models.Forecast]("weather_forecast", cfg.CacheTTL, cfg.CacheEntries, cfg.CacheTTL),
		locations: cache.New[[]models.Location]("weather_location", cfg.LocationTTL, cfg.CacheEntries, cfg.CacheTTL),
	}
}

// Close stops the cache janitors.
func (s *Service) Close() {
	s.forecasts.Close()
	s.locations.Close()
}

// Weather returns the forecast for lat/lon, or nil when it is unavailable.
func (s *Service) Weather(ctx context.Context, lat, lon float64) *models.Forecast {
	if !validCoordinate(lat, lon) {
		logging.Ctx(ctx).Warn().Float64("lat", lat).Float64("lon", lon).Msg("Ignoring weather lookup for invalid coordinates")
		return nil
	}

	key := coordinateKey(lat, lon)
	if f, ok := s.forecasts.Get(key); ok {
		return f
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current", "temperature_2m,wind_speed_10m,weather_code,is_day,precipitation")
	q.Set("hourly", "temperature_2m,precipitation_probability,weather_code")
	q.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min")
	q.Set("timezone", "auto")
	q.Set("forecast_days", strconv.Itoa(s.cfg.ForecastDays))

	body, err := s.fetch(ctx, endpointForecast, s.cfg.ForecastURL, q)
	if err != nil {
		s.warn(ctx, endpointForecast, err)
		return nil
	}

	var raw forecastResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		s.warn(ctx, endpointForecast, fmt.Errorf("decode forecast: %w", err))
		return nil
	}
	f := raw.toForecast()
	s.forecasts.Set(key, f)
	return f
}

// SearchLocation returns place candidates for query. The result is never nil.
func (s *Service) SearchLocation(ctx context.Context, query string) []models.Location {
	norm := normalizeQuery(query)
	if len([]rune(norm)) < 2 {
		return []models.Location{}
	}
	if locs, ok := s.locations.Get(norm); ok {
		return locs
	}

	q := url.Values{}
	q.Set("name", norm)
	q.Set("count", strconv.Itoa(s.cfg.MaxResults))
	q.Set("language", s.cfg.Language)
	q.Set("format", "json")

	body, err := s.fetch(ctx, endpointGeocode, s.cfg.GeocodingURL, q)
	if err != nil {
		s.warn(ctx, endpointGeocode, err)
		return []models.Location{}
	}

	var raw geocodeResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		s.warn(ctx, endpointGeocode, fmt.Errorf("decode geocoding: %w", err))
		return []models.Location{}
	}
	locs := make([]models.Location, 0, len(raw.Results))
	for _, r := range raw.Results {
		locs = append(locs, models.Location{
			ID:        r.ID,
			Name:      r.Name,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Country:   r.Country,
			Admin1:    r.Admin1,
			Timezone:  r.Timezone,
		})
	}
	s.locations.Set(norm, locs)
	return locs
}

func (s *Service) fetch(ctx context.Context, endpoint, base string, q url.Values) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		metrics.WeatherRequests.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	body, err := s.breaker.execute(func() ([]byte, error) {
		return s.get(ctx, base, q)
	})
	metrics.WeatherAPICallDuration.Observe(time.Since(start).Seconds())

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.WeatherRequests.WithLabelValues(endpoint, result).Inc()
	return body, err
}

func (s *Service) get(ctx context.Context, base string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

func (s *Service) warn(ctx context.Context, endpoint string, err error) {
	terr := &models.TransportError{Service: "open-meteo " + endpoint, Err: err}
	ev := logging.Ctx(ctx).Warn().Err(terr).Str("breaker_state", stateToString(s.breaker.state()))
	if errors.Is(err, context.Canceled) {
		ev = logging.Ctx(ctx).Debug().Err(terr)
	}
	ev.Msg("Weather lookup failed")
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// coordinateKey rounds to two decimals, roughly one kilometre.
func coordinateKey(lat, lon float64) string {
	return cache.GenerateKey(endpointForecast, [2]string{
		strconv.FormatFloat(math.Round(lat*100)/100, 'f', 2, 64),
		strconv.FormatFloat(math.Round(lon*100)/100, 'f', 2, 64),
	})
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
