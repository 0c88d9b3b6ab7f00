package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes sync events to an slog.Logger.
// Useful for development when you want to see events in the console.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger
// at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of a logging at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	c := *a
	c.level = level
	return &c
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.InstanceID != "" {
		attrs = append(attrs, slog.String("instance_id", event.InstanceID))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}

	switch {
	case event.Request != nil:
		attrs = append(attrs,
			slog.String("operation", event.Request.Operation),
			slog.Int("attempt", event.Request.Attempt),
		)
		if len(event.Request.Interests) > 0 {
			attrs = append(attrs, slog.Any("interests", event.Request.Interests))
		}
		if event.Request.UserID != "" {
			attrs = append(attrs, slog.String("user_id", event.Request.UserID))
		}
	case event.Response != nil:
		attrs = append(attrs,
			slog.String("operation", event.Response.Operation),
			slog.Int("attempt", event.Response.Attempt),
			slog.String("result", event.Response.Result),
			slog.Duration("duration", event.Response.Duration),
		)
		if event.Response.Discarded {
			attrs = append(attrs, slog.Bool("discarded", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Notification != nil:
		attrs = append(attrs, slog.String("notification", event.Notification.Type.String()))
		if event.Notification.Type == NotificationSubscriptionsChanged {
			attrs = append(attrs, slog.Any("interests", event.Notification.Interests))
		}
		if event.Notification.Operation != "" {
			attrs = append(attrs,
				slog.String("operation", event.Notification.Operation),
				slog.String("result", event.Notification.Result),
			)
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Kind != "" {
			attrs = append(attrs, slog.String("error_kind", event.Error.Kind))
		}
	}

	a.logger.LogAttrs(context.Background(), a.level, "sync", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
