package logging

import (
	"context"
	"log/slog"
)

// levelFloor drops records below min before they reach next. The shared
// handler runs at the most verbose level any stage override asks for, so each
// logger derived from it carries its own floor.
type levelFloor struct {
	next slog.Handler
	min  slog.Level
}

func (h levelFloor) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.next.Enabled(ctx, level)
}

func (h levelFloor) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h levelFloor) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelFloor{next: h.next.WithAttrs(attrs), min: h.min}
}

func (h levelFloor) WithGroup(name string) slog.Handler {
	return levelFloor{next: h.next.WithGroup(name), min: h.min}
}

// WithMinLevel returns a logger that discards records below level. Applied to
// a logger that already has a floor, the new level replaces the old one, so a
// stage override can be more verbose than the global level.
func WithMinLevel(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if floor, ok := next.(levelFloor); ok {
		next = floor.next
	}
	return slog.New(levelFloor{next: next, min: level})
}
