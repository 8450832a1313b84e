package trace

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event as a single record.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("component", "trace"),
		slog.String("op", event.Op.String()),
	}
	if event.Driver != "" {
		attrs = append(attrs, slog.String("driver", event.Driver))
	}
	if event.Node != "" {
		attrs = append(attrs, slog.String("node", event.Node))
	}
	if event.Device != "" {
		attrs = append(attrs, slog.String("device", event.Device))
	}
	if event.Serial != "" {
		attrs = append(attrs, slog.String("serial", event.Serial))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session", event.SessionID))
	}

	switch event.Op {
	case OpRead, OpWrite:
		attrs = append(attrs,
			slog.Int("requested", event.Requested),
			slog.Int("transferred", event.Transferred),
			slog.Bool("truncated", event.Truncated),
			slog.Int64("offset", event.Offset),
		)
	case OpSeek:
		attrs = append(attrs, slog.Int64("offset", event.Offset))
	}

	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
