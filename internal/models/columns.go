package models

import (
	"strconv"
	"strings"
	"unicode"
)

// SheetTitle is written above the header row when there is room for it.
const SheetTitle = "📊 Weather Update Log"

// Column describes one stored field.
type Column struct {
	Key         string
	Header      string
	Description string
}

// Columns is the stored row layout. WeatherReading.Row follows this order.
var Columns = []Column{
	{Key: "time", Header: "📅 Time", Description: "Log timestamp (local time)"},
	{Key: "city", Header: "🏙️ City", Description: "City name"},
	{Key: "temperature", Header: "🌡️ Temperature", Description: "Current temperature (°C)"},
	{Key: "min temp", Header: "🌡️ Min Temp", Description: "Minimum temperature (°C)"},
	{Key: "max temp", Header: "🌡️ Max Temp", Description: "Maximum temperature (°C)"},
	{Key: "feels like", Header: "🥵 Feels Like", Description: "Feels like temperature (°C)"},
	{Key: "humidity", Header: "💧 Humidity", Description: "Humidity in %"},
	{Key: "pressure", Header: "📈 Pressure", Description: "Atmospheric pressure (hPa)"},
	{Key: "wind speed", Header: "💨 Wind Speed", Description: "Wind speed (m/s)"},
	{Key: "wind dir", Header: "🧭 Wind Dir", Description: "Wind direction (cardinal)"},
	{Key: "visibility (km)", Header: "🔭 Visibility (km)", Description: "Visibility in kilometers"},
	{Key: "condition", Header: "🌦️ Condition", Description: "Weather condition description"},
	{Key: "main", Header: "🌀 Main", Description: "Main weather category"},
	{Key: "icon", Header: "🖼️ Icon", Description: "Weather icon (emoji)"},
	{Key: "sunrise", Header: "🌅 Sunrise", Description: "Sunrise time (local)"},
	{Key: "sunset", Header: "🌇 Sunset", Description: "Sunset time (local)"},
}

// Headers returns the header labels in column order.
func Headers() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Header
	}
	return out
}

// NormalizeHeader reduces a header label to its column key: leading symbols and
// emoji are dropped, inner whitespace collapsed, letters lower-cased.
// "🌀 Main", "Main" and " main " all normalise to "main".
func NormalizeHeader(label string) string {
	trimmed := strings.TrimLeftFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToLower(strings.Join(strings.Fields(trimmed), " "))
}

// RecordFromValues builds an AlertRecord from a normalised key -> cell map.
// Numeric cells that do not parse are left at zero.
func RecordFromValues(values map[string]string) AlertRecord {
	return AlertRecord{
		Time:        values["time"],
		City:        values["city"],
		Main:        values["main"],
		Condition:   values["condition"],
		Icon:        values["icon"],
		Temperature: parseCell(values["temperature"]),
		Humidity:    parseCell(values["humidity"]),
	}
}

func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
