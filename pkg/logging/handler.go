package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ForwardHandler is an slog.Handler that forwards records to a syslog
// client in addition to a wrapped base handler (typically stderr).
type ForwardHandler struct {
	base   slog.Handler
	client *Client
	attrs  []slog.Attr
	groups []string
}

// NewForwardHandler wraps a base slog.Handler with syslog forwarding.
func NewForwardHandler(base slog.Handler, client *Client) *ForwardHandler {
	return &ForwardHandler{base: base, client: client}
}

// Enabled implements slog.Handler.
func (h *ForwardHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ForwardHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.base.Handle(ctx, r)
	h.client.Send(levelToSeverity(r.Level), formatRecord(r, h.attrs, h.groups))
	return err
}

// WithAttrs implements slog.Handler.
func (h *ForwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ForwardHandler{
		base:   h.base.WithAttrs(attrs),
		client: h.client,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *ForwardHandler) WithGroup(name string) slog.Handler {
	return &ForwardHandler{
		base:   h.base.WithGroup(name),
		client: h.client,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

// levelToSeverity maps slog levels to syslog severity values.
func levelToSeverity(level slog.Level) int {
	switch {
	case level >= LevelFatal:
		return SeverityCrit
	case level >= slog.LevelError:
		return SeverityError
	case level >= slog.LevelWarn:
		return SeverityWarning
	case level >= slog.LevelInfo:
		return SeverityInfo
	default:
		return SeverityDebug
	}
}

// formatRecord produces a compact text representation of a log record.
func formatRecord(r slog.Record, preAttrs []slog.Attr, groups []string) string {
	var b strings.Builder
	b.WriteString(r.Message)

	for _, a := range preAttrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if len(groups) > 0 {
			key = strings.Join(groups, ".") + "." + key
		}
		fmt.Fprintf(&b, " %s=%s", key, a.Value.String())
		return true
	})

	return b.String()
}
