// Package notify delivers composed alerts over email and Telegram.
package notify

import (
	"context"
	"fmt"

	"weather-alerts/internal/alerting"
)

// Notifier delivers one alert message over a single channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg alerting.Message) error
}

// NotificationError is a delivery failure on one channel.
type NotificationError struct {
	Channel string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("%s notification failed: %v", e.Channel, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// IsTransient is true: delivery problems are usually network or provider side.
func (e *NotificationError) IsTransient() bool {
	return true
}
