package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TimestampLayout is the layout of WeatherReading.Timestamp as stored in a row.
const TimestampLayout = "2006-01-02 15:04:05"

// ClockLayout is the layout of sunrise and sunset values.
const ClockLayout = "15:04"

// WeatherReading is one city's weather at one poll. Built by ToReading and never
// modified afterwards.
type WeatherReading struct {
	Timestamp    time.Time `json:"timestamp"`
	City         string    `json:"city"`
	Temperature  float64   `json:"temperature"`
	MinTemp      float64   `json:"min_temp"`
	MaxTemp      float64   `json:"max_temp"`
	FeelsLike    float64   `json:"feels_like"`
	Humidity     float64   `json:"humidity"`
	Pressure     float64   `json:"pressure"`
	WindSpeed    float64   `json:"wind_speed"`
	WindDir      string    `json:"wind_dir"`
	VisibilityKm float64   `json:"visibility_km"`
	Condition    string    `json:"condition"`
	Main         string    `json:"main"`
	Icon         string    `json:"icon"`
	Sunrise      string    `json:"sunrise"`
	Sunset       string    `json:"sunset"`
}

// Row renders the reading as stringified cells in Columns order.
func (r WeatherReading) Row() []string {
	return []string{
		r.Timestamp.Format(TimestampLayout),
		r.City,
		formatNumber(r.Temperature),
		formatNumber(r.MinTemp),
		formatNumber(r.MaxTemp),
		formatNumber(r.FeelsLike),
		formatNumber(r.Humidity),
		formatNumber(r.Pressure),
		formatNumber(r.WindSpeed),
		r.WindDir,
		formatNumber(r.VisibilityKm),
		r.Condition,
		r.Main,
		r.Icon,
		r.Sunrise,
		r.Sunset,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AlertRecord is the read-back view of a stored reading used for alert evaluation.
type AlertRecord struct {
	Time        string  `json:"time" db:"observed_at"`
	City        string  `json:"city" db:"city"`
	Main        string  `json:"main" db:"main"`
	Condition   string  `json:"condition" db:"condition"`
	Icon        string  `json:"icon" db:"icon"`
	Temperature float64 `json:"temperature" db:"temperature"`
	Humidity    float64 `json:"humidity" db:"humidity"`
}

// AlertDecision is the outcome of evaluating a window of AlertRecords.
type AlertDecision struct {
	Triggered bool          `json:"triggered"`
	Matches   []AlertRecord `json:"matches"`
}

// ProviderCode is the provider's "cod" field. Successful responses carry a
// number, error responses a string ("404"), so both are accepted.
type ProviderCode int

// UnmarshalJSON implements json.Unmarshaler.
func (c *ProviderCode) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid cod %s: %w", string(data), err)
	}
	*c = ProviderCode(n)
	return nil
}

// ProviderResponse is the current-weather payload returned by OpenWeatherMap.
type ProviderResponse struct {
	Cod     ProviderCode `json:"cod"`
	Message string       `json:"message"`
	Name    string       `json:"name"`
	Main    struct {
		Temp      float64 `json:"temp"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Visibility float64 `json:"visibility"`
	Weather    []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Timezone int64 `json:"timezone"`
}

// DecodeProviderResponse parses a provider body.
func DecodeProviderResponse(data []byte) (*ProviderResponse, error) {
	var resp ProviderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

var weatherIcons = map[string]string{
	"Clear":        "☀️",
	"Clouds":       "☁️",
	"Rain":         "🌧",
	"Thunderstorm": "⛈",
	"Snow":         "❄",
	"Mist":         "🌫",
	"Drizzle":      "🌦",
	"Haze":         "🌁",
	"Fog":          "🌁",
}

// IconFor returns the glyph for a main category, or "" when unknown.
func IconFor(main string) string {
	return weatherIcons[main]
}

var cardinals = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// DegreesToCardinal buckets a bearing into 8 sectors of 45°.
// Ties round away from zero: 22.5° is NE, 67.5° is E.
func DegreesToCardinal(deg float64) string {
	idx := int(math.Round(deg/45)) % 8
	if idx < 0 {
		idx += 8
	}
	return cardinals[idx]
}

// LocalClock converts a UTC epoch and a UTC offset in seconds to local HH:MM.
func LocalClock(epoch, offsetSeconds int64) string {
	return time.Unix(epoch+offsetSeconds, 0).UTC().Format(ClockLayout)
}

// ToReading maps a provider response into a WeatherReading observed at the given time.
// A non-200 cod or a missing weather block yields a *ProviderError.
func (p *ProviderResponse) ToReading(city string, observedAt time.Time) (*WeatherReading, error) {
	if p.Cod != 200 {
		msg := p.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, &ProviderError{
			City:    city,
			Code:    int(p.Cod),
			Message: msg,
		}
	}
	if len(p.Weather) == 0 {
		return nil, &ProviderError{
			City:    city,
			Code:    int(p.Cod),
			Message: "response has no weather conditions",
		}
	}

	name := p.Name
	if name == "" {
		name = city
	}
	main := p.Weather[0].Main

	return &WeatherReading{
		Timestamp:    observedAt,
		City:         name,
		Temperature:  p.Main.Temp,
		MinTemp:      p.Main.TempMin,
		MaxTemp:      p.Main.TempMax,
		FeelsLike:    p.Main.FeelsLike,
		Humidity:     p.Main.Humidity,
		Pressure:     p.Main.Pressure,
		WindSpeed:    p.Wind.Speed,
		WindDir:      DegreesToCardinal(p.Wind.Deg),
		VisibilityKm: p.Visibility / 1000,
		Condition:    cases.Title(language.English).String(p.Weather[0].Description),
		Main:         main,
		Icon:         IconFor(main),
		Sunrise:      LocalClock(p.Sys.Sunrise, p.Timezone),
		Sunset:       LocalClock(p.Sys.Sunset, p.Timezone),
	}, nil
}
