package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes added to every record at write time,
// such as the current session key.
type ContextProvider func() []slog.Attr

// fanout writes each record to every handler enabled for its level and
// appends the dynamic attributes first.
type fanout struct {
	handlers []slog.Handler
	dynamic  ContextProvider
}

func newFanout(dynamic ContextProvider, handlers ...slog.Handler) *fanout {
	f := &fanout{dynamic: dynamic}
	for _, h := range handlers {
		if h != nil {
			f.handlers = append(f.handlers, h)
		}
	}
	return f
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle reports the failures of individual handlers; one failing sink
// does not stop the others.
func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	if f.dynamic != nil {
		if attrs := f.dynamic(); len(attrs) > 0 {
			r = r.Clone()
			r.AddAttrs(attrs...)
		}
	}
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) derive(fn func(slog.Handler) slog.Handler) *fanout {
	out := &fanout{dynamic: f.dynamic, handlers: make([]slog.Handler, len(f.handlers))}
	for i, h := range f.handlers {
		out.handlers[i] = fn(h)
	}
	return out
}
