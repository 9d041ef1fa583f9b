// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package models

// Forecast is the weather for one coordinate pair.
type Forecast struct {
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Timezone  string          `json:"timezone"`
	Current   CurrentWeather  `json:"current"`
	Hourly    []HourlyWeather `json:"hourly"`
	Daily     []DailyWeather  `json:"daily"`
}

// CurrentWeather holds the latest observation.
type CurrentWeather struct {
	Time          string  `json:"time"`
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windSpeed"`
	WeatherCode   int     `json:"weatherCode"`
	IsDay         bool    `json:"isDay"`
	Precipitation float64 `json:"precipitation"`
}

// HourlyWeather is one hourly forecast point.
type HourlyWeather struct {
	Time                     string  `json:"time"`
	Temperature              float64 `json:"temperature"`
	PrecipitationProbability int     `json:"precipitationProbability"`
	WeatherCode              int     `json:"weatherCode"`
}

// DailyWeather is one daily forecast point.
type DailyWeather struct {
	Date           string  `json:"date"`
	WeatherCode    int     `json:"weatherCode"`
	TemperatureMax float64 `json:"temperatureMax"`
	TemperatureMin float64 `json:"temperatureMin"`
}

// Location is a geocoding candidate.
type Location struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
}
