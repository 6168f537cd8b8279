// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package logging provides structured logging that carries the shell's
// service identity, OpenTelemetry trace context and per-activation
// attributes stored in a context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type attrsKey struct{}

// WithAttrs returns a copy of ctx whose records, when logged through a
// *Context method, include attrs. Attrs already on ctx are kept.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	merged := slices.Concat(attrsFrom(ctx), attrs)
	return context.WithValue(ctx, attrsKey{}, merged)
}

func attrsFrom(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

// contextHandler adds the service identity, context attributes and trace
// context to every record.
type contextHandler struct {
	handler slog.Handler
	service string
	version string
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)
	r.AddAttrs(attrsFrom(ctx)...)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{
		handler: h.handler.WithAttrs(attrs),
		service: h.service,
		version: h.version,
	}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{
		handler: h.handler.WithGroup(name),
		service: h.service,
		version: h.version,
	}
}

// Setup creates a logger that logs at debug level.
// format is "json" or "text" (json when empty). A nil w writes to os.Stderr.
func Setup(service, version, format string, w io.Writer) *slog.Logger {
	return SetupLevel(service, version, format, slog.LevelDebug, w)
}

// SetupLevel is Setup with a minimum level.
func SetupLevel(service, version, format string, level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	if format == "text" {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}

	return slog.New(&contextHandler{
		handler: base,
		service: service,
		version: version,
	})
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetDefault builds a logger with SetupLevel and installs it as the slog
// default.
func SetDefault(service, version, format string, level slog.Level, w io.Writer) *slog.Logger {
	logger := SetupLevel(service, version, format, level, w)
	slog.SetDefault(logger)
	return logger
}
