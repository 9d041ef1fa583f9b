// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package cache provides a thread-safe, generic TTL cache.

The weather service keeps two caches: forecasts keyed by coordinates
rounded to two decimals, and geocoding results keyed by the normalized
query.

	forecasts := cache.New[*models.Forecast]("weather_forecast", 10*time.Minute, 256, time.Minute)
	defer forecasts.Close()

	key := cache.GenerateKey("forecast", map[string]float64{"lat": 52.52, "lon": 13.40})
	if f, ok := forecasts.Get(key); ok {
		return f
	}

Expiry is checked lazily on Get and by an optional cleanup goroutine.
When maxEntries is reached the entry closest to expiry is evicted. Hits and
misses are exported as relay_cache_hits_total and relay_cache_misses_total,
labeled by cache name.
*/
package cache
