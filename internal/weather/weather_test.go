// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package weather

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/relay/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

const forecastJSON = `{
  "latitude": 52.52, "longitude": 13.42, "timezone": "Europe/Berlin",
  "current": {"time": "2026-10-19T12:00", "temperature_2m": 14.2, "wind_speed_10m": 9.1, "weather_code": 3, "is_day": 1, "precipitation": 0.0},
  "hourly": {
    "time": ["2026-10-19T12:00", "2026-10-19T13:00"],
    "temperature_2m": [14.2, null],
    "precipitation_probability": [10],
    "weather_code": [3, 61]
  },
  "daily": {
    "time": ["2026-10-19"],
    "weather_code": [61],
    "temperature_2m_max": [16.0],
    "temperature_2m_min": [8.5]
  }
}`

const geocodeJSON = `{"results": [
  {"id": 2950159, "name": "Berlin", "latitude": 52.52, "longitude": 13.41, "country": "Germany", "admin1": "Land Berlin", "timezone": "Europe/Berlin"}
]}`

type upstream struct {
	srv       *httptest.Server
	forecasts atomic.Int32
	searches  atomic.Int32
	status    atomic.Int32
	body      atomic.Value
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.status.Store(http.StatusOK)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		u.forecasts.Add(1)
		if r.URL.Query().Get("timezone") != "auto" {
			t.Errorf("missing timezone parameter: %s", r.URL.RawQuery)
		}
		w.WriteHeader(int(u.status.Load()))
		_, _ = io.WriteString(w, forecastJSON)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		u.searches.Add(1)
		w.WriteHeader(int(u.status.Load()))
		if b, ok := u.body.Load().(string); ok {
			_, _ = io.WriteString(w, b)
			return
		}
		_, _ = io.WriteString(w, geocodeJSON)
	})
	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func newTestService(t *testing.T, u *upstream, mutate func(*Config)) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ForecastURL = u.srv.URL + "/v1/forecast"
	cfg.GeocodingURL = u.srv.URL + "/v1/search"
	cfg.RequestsPerSecond = 0
	if mutate != nil {
		mutate(&cfg)
	}
	s := New(cfg)
	t.Cleanup(s.Close)
	return s
}

func TestWeather_DecodesAndCaches(t *testing.T) {
	u := newUpstream(t)
	s := newTestService(t, u, nil)
	ctx := context.Background()

	f := s.Weather(ctx, 52.5201, 13.4049)
	if f == nil {
		t.Fatal("Weather() returned nil")
	}
	if f.Timezone != "Europe/Berlin" || f.Current.Temperature != 14.2 || !f.Current.IsDay {
		t.Errorf("unexpected current weather %+v", f.Current)
	}
	if len(f.Hourly) != 2 || f.Hourly[1].Temperature != 0 || f.Hourly[1].PrecipitationProbability != 0 || f.Hourly[1].WeatherCode != 61 {
		t.Errorf("hourly columns not aligned: %+v", f.Hourly)
	}
	if len(f.Daily) != 1 || f.Daily[0].TemperatureMin != 8.5 {
		t.Errorf("unexpected daily %+v", f.Daily)
	}

	if again := s.Weather(ctx, 52.5198, 13.4041); again != f {
		t.Error("nearby coordinates should be served from cache")
	}
	if n := u.forecasts.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1", n)
	}
}

func TestWeather_InvalidCoordinates(t *testing.T) {
	u := newUpstream(t)
	s := newTestService(t, u, nil)

	for _, c := range [][2]float64{{91, 0}, {0, -181}} {
		if f := s.Weather(context.Background(), c[0], c[1]); f != nil {
			t.Errorf("Weather(%v) = %+v, want nil", c, f)
		}
	}
	if u.forecasts.Load() != 0 {
		t.Error("invalid coordinates must not reach upstream")
	}
}

func TestWeather_FailuresOpenBreaker(t *testing.T) {
	u := newUpstream(t)
	u.status.Store(http.StatusBadGateway)
	s := newTestService(t, u, func(c *Config) {
		c.Breaker = BreakerConfig{MinRequests: 2, FailureRatio: 0.5, Interval: time.Minute, Timeout: time.Minute, MaxHalfOpen: 1}
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if f := s.Weather(ctx, float64(i), 10); f != nil {
			t.Fatalf("call %d: expected nil on upstream failure", i)
		}
	}
	if s.breaker.state() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", s.breaker.state())
	}

	if f := s.Weather(ctx, 5, 10); f != nil {
		t.Error("expected nil while breaker is open")
	}
	if n := u.forecasts.Load(); n != 2 {
		t.Errorf("upstream called %d times, want 2", n)
	}
}

func TestWeather_RateLimitedContext(t *testing.T) {
	u := newUpstream(t)
	s := newTestService(t, u, func(c *Config) {
		c.RequestsPerSecond = 0.001
		c.Burst = 1
	})

	if s.Weather(context.Background(), 1, 1) == nil {
		t.Fatal("first request should pass the limiter")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if f := s.Weather(ctx, 2, 2); f != nil {
		t.Error("expected nil when the limiter cannot admit the request")
	}
	if n := u.forecasts.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1", n)
	}
}

func TestSearchLocation(t *testing.T) {
	u := newUpstream(t)
	s := newTestService(t, u, nil)
	ctx := context.Background()

	locs := s.SearchLocation(ctx, "  Berlin ")
	if len(locs) != 1 || locs[0].Name != "Berlin" || locs[0].Country != "Germany" {
		t.Fatalf("SearchLocation() = %+v", locs)
	}
	_ = s.SearchLocation(ctx, "BERLIN")
	if n := u.searches.Load(); n != 1 {
		t.Errorf("normalized query should hit cache, upstream called %d times", n)
	}

	if got := s.SearchLocation(ctx, " b "); got == nil || len(got) != 0 {
		t.Errorf("short query = %#v, want empty non-nil", got)
	}
}

func TestSearchLocation_TolerantFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"no results key", http.StatusOK, `{"generationtime_ms": 0.5}`},
		{"malformed json", http.StatusOK, `{"results": [`},
		{"server error", http.StatusInternalServerError, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t)
			u.status.Store(int32(tt.status))
			u.body.Store(tt.body)
			s := newTestService(t, u, nil)

			got := s.SearchLocation(context.Background(), "paris")
			if got == nil || len(got) != 0 {
				t.Errorf("SearchLocation() = %#v, want empty non-nil", got)
			}
		})
	}
}

func TestCoordinateKey(t *testing.T) {
	if coordinateKey(52.5201, 13.4049) != coordinateKey(52.5249, 13.4001) {
		t.Error("coordinates within the same hundredth should share a key")
	}
	if coordinateKey(52.52, 13.40) == coordinateKey(52.53, 13.40) {
		t.Error("distinct hundredths should not share a key")
	}
}
