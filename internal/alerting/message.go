package alerting

import (
	"fmt"
	"strconv"
	"strings"

	"weather-alerts/internal/models"
)

// AlertSubject is the subject line of every alert.
const AlertSubject = "⚠️ Weather Alert: Bad Weather Detected"

// Message is a composed notification.
type Message struct {
	Subject string
	Body    string
}

// ComposeMessage renders one line per matching record, in order.
func ComposeMessage(decision models.AlertDecision) Message {
	lines := make([]string, 0, len(decision.Matches))
	for _, rec := range decision.Matches {
		lines = append(lines, FormatLine(rec))
	}
	return Message{
		Subject: AlertSubject,
		Body:    strings.Join(lines, "\n"),
	}
}

// FormatLine renders a single record, e.g.
// "2024-07-14 09:30:00 in Delhi: Rain (Moderate Rain), 31.05°C, 74% humidity".
func FormatLine(rec models.AlertRecord) string {
	return fmt.Sprintf("%s in %s: %s (%s), %s°C, %s%% humidity",
		rec.Time,
		rec.City,
		rec.Main,
		rec.Condition,
		strconv.FormatFloat(rec.Temperature, 'f', -1, 64),
		strconv.FormatFloat(rec.Humidity, 'f', -1, 64),
	)
}
