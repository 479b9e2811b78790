package logger

import (
	"context"
	"log/slog"
	"runtime"
)

// sourceForLevels decorates records of selected levels with their call
// site. The wrapped handler must be built with AddSource: false.
type sourceForLevels struct {
	next   slog.Handler
	levels map[slog.Level]bool
}

func NewConditionalSourceHandler(next slog.Handler, levels ...slog.Level) slog.Handler {
	m := make(map[slog.Level]bool, len(levels))
	for _, l := range levels {
		m[l] = true
	}
	return &sourceForLevels{next: next, levels: m}
}

func (h *sourceForLevels) Handle(ctx context.Context, r slog.Record) error {
	if h.levels[r.Level] {
		// Skip Callers, Handle, and the slog frontend frame.
		var pcs [1]uintptr
		runtime.Callers(3, pcs[:])
		frames := runtime.CallersFrames(pcs[:])
		f, _ := frames.Next()

		r.AddAttrs(slog.Attr{
			Key: slog.SourceKey,
			Value: slog.AnyValue(&slog.Source{
				Function: f.Function,
				File:     f.File,
				Line:     f.Line,
			}),
		})
	}
	return h.next.Handle(ctx, r)
}

func (h *sourceForLevels) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sourceForLevels{next: h.next.WithAttrs(attrs), levels: h.levels}
}

func (h *sourceForLevels) WithGroup(name string) slog.Handler {
	return &sourceForLevels{next: h.next.WithGroup(name), levels: h.levels}
}

func (h *sourceForLevels) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}
