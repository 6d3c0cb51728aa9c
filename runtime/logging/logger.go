// Package logging provides the slog handler used by the fx-events
// runtime: JSON records tagged with the owning app and component.
package logging

import (
	"context"
	"io"
	"log/slog"
	"time"
)

type Options struct {
	App       string
	Component string

	Attrs []slog.Attr
}

type Handler struct {
	opts Options
	*slog.JSONHandler
}

var _ slog.Handler = (*Handler)(nil)

func NewHandler(w io.Writer, opts Options, level slog.Leveler) *Handler {
	h := &Handler{
		opts: opts,
		JSONHandler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if len(groups) == 0 && a.Key == slog.TimeKey {
					a.Value = slog.StringValue(a.Value.Time().Format(time.DateTime))
				}
				return a
			},
		}),
	}

	if opts.App != "" {
		h.opts.Attrs = append(h.opts.Attrs, slog.String("app", opts.App))
	}
	if opts.Component != "" {
		h.opts.Attrs = append(h.opts.Attrs, slog.String("component", opts.Component))
	}

	return h
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.JSONHandler.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.opts.Attrs = append(c.opts.Attrs, attrs...)
	return &c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return h
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if len(h.opts.Attrs) > 0 {
		r.AddAttrs(h.opts.Attrs...)
	}
	return h.JSONHandler.Handle(ctx, r)
}
