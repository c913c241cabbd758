// Package logging provides the compact slog handler used by the command line tools.
package logging

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// CompactHandler is a slog.Handler writing one short line per record:
// timestamp, level, message and the record's attributes sorted by key.
type CompactHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewCompactHandler returns a CompactHandler writing records at or above level to out.
func NewCompactHandler(out io.Writer, level slog.Leveler) *CompactHandler {
	if level == nil {
		level = slog.LevelInfo
	}

	return &CompactHandler{
		w:     out,
		mu:    &sync.Mutex{},
		level: level,
	}
}

// Setup installs a CompactHandler on out as the default logger.
func Setup(out io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(NewCompactHandler(out, level))
	slog.SetDefault(logger)

	return logger
}

// Enabled reports whether the handler handles records at the given level.
func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), h.qualify(attrs)...)

	return &nh
}

// WithGroup returns a handler that prefixes the keys of later attributes with name.
func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	nh := *h
	if nh.group != "" {
		nh.group += "."
	}

	nh.group += name

	return &nh
}

// Handle handles the Record.
func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	// Build up the base line with timestamp, log level, and message.
	if !r.Time.IsZero() {
		_, _ = buf.WriteString(r.Time.Format(time.DateTime) + " ")
	}

	_, _ = buf.WriteString(r.Level.String() + " " + r.Message)

	// Get the attributes for this record.
	attrs := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.String()
	}

	r.Attrs(func(a slog.Attr) bool {
		for _, qa := range h.qualify([]slog.Attr{a}) {
			attrs[qa.Key] = qa.Value.String()
		}

		return true
	})

	// Sort the keys so we have a consistent output.
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		v := attrs[k]
		if strings.ContainsAny(v, " \t\"") {
			v = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
		}

		_, _ = buf.WriteString(" " + k + "=" + v)
	}

	_, _ = buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.w, buf.String())

	return err
}

// qualify flattens groups and prefixes keys with the handler's group.
func (h *CompactHandler) qualify(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))

	for _, a := range attrs {
		a.Value = a.Value.Resolve()

		if a.Value.Kind() == slog.KindGroup {
			sub := *h
			if a.Key != "" {
				sub = *h.WithGroup(a.Key).(*CompactHandler) //nolint:forcetypeassert
			}

			out = append(out, sub.qualify(a.Value.Group())...)

			continue
		}

		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}

		out = append(out, a)
	}

	return out
}
