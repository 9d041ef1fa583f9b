// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package weather

import "github.com/tomtom215/relay/internal/models"

// Open-Meteo returns column arrays. Missing samples are null.

type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Current   struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WeatherCode   int     `json:"weather_code"`
		IsDay         int     `json:"is_day"`
		Precipitation float64 `json:"precipitation"`
	} `json:"current"`
	Hourly struct {
		Time                     []string   `json:"time"`
		Temperature              []*float64 `json:"temperature_2m"`
		PrecipitationProbability []*int     `json:"precipitation_probability"`
		WeatherCode              []*int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Time           []string   `json:"time"`
		WeatherCode    []*int     `json:"weather_code"`
		TemperatureMax []*float64 `json:"temperature_2m_max"`
		TemperatureMin []*float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

type geocodeResponse struct {
	Results []struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
		Timezone  string  `json:"timezone"`
	} `json:"results"`
}

func (r *forecastResponse) toForecast() *models.Forecast {
	f := &models.Forecast{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timezone:  r.Timezone,
		Current: models.CurrentWeather{
			Time:          r.Current.Time,
			Temperature:   r.Current.Temperature,
			WindSpeed:     r.Current.WindSpeed,
			WeatherCode:   r.Current.WeatherCode,
			IsDay:         r.Current.IsDay == 1,
			Precipitation: r.Current.Precipitation,
		},
		Hourly: make([]models.HourlyWeather, 0, len(r.Hourly.Time)),
		Daily:  make([]models.DailyWeather, 0, len(r.Daily.Time)),
	}
	for i, t := range r.Hourly.Time {
		f.Hourly = append(f.Hourly, models.HourlyWeather{
			Time:                     t,
			Temperature:              at(r.Hourly.Temperature, i),
			PrecipitationProbability: at(r.Hourly.PrecipitationProbability, i),
			WeatherCode:              at(r.Hourly.WeatherCode, i),
		})
	}
	for i, d := range r.Daily.Time {
		f.Daily = append(f.Daily, models.DailyWeather{
			Date:           d,
			WeatherCode:    at(r.Daily.WeatherCode, i),
			TemperatureMax: at(r.Daily.TemperatureMax, i),
			TemperatureMin: at(r.Daily.TemperatureMin, i),
		})
	}
	return f
}

// at tolerates short columns and null samples.
func at[T any](col []*T, i int) T {
	var zero T
	if i >= len(col) || col[i] == nil {
		return zero
	}
	return *col[i]
}
