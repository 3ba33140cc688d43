package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNotConfigured means no channel has the credentials it needs.
	ErrNotConfigured = errors.New("notification channel not configured")
	// ErrDeliveryFailed wraps every transport-level delivery failure.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// Notifier delivers a plain-text message to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, text string) error
}

// Broadcast sends to every configured channel in order.
type Broadcast struct {
	channels []Notifier
}

// NewBroadcast builds a Broadcast over the given channels. Nil interface
// values are skipped.
func NewBroadcast(channels ...Notifier) *Broadcast {
	b := &Broadcast{}
	for _, c := range channels {
		if c != nil {
			b.channels = append(b.channels, c)
		}
	}
	return b
}

// Channels lists the configured channel names.
func (b *Broadcast) Channels() []string {
	names := make([]string, len(b.channels))
	for i, c := range b.channels {
		names[i] = c.Name()
	}
	return names
}

// Notify delivers text to every channel. It keeps going after a failure and
// returns the joined errors.
func (b *Broadcast) Notify(ctx context.Context, text string) error {
	if len(b.channels) == 0 {
		return ErrNotConfigured
	}

	var errs []error
	for _, c := range b.channels {
		if err := c.Notify(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		slog.Info("notification sent", "channel", c.Name())
	}
	return errors.Join(errs...)
}
