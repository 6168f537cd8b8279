// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package errutil provides helpers for oops-coded errors.
package errutil

import (
	"context"
	"log/slog"
	"maps"

	"github.com/samber/oops"
)

// LogError logs err at error level through ctx. For oops errors the code,
// domain and context are logged as attributes, with the plugin name lifted
// to a top-level "plugin" attribute.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.ErrorContext(ctx, msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if domain := oopsErr.Domain(); domain != "" {
		attrs = append(attrs, "domain", domain)
	}

	errCtx := maps.Clone(oopsErr.Context())
	if name, ok := errCtx["plugin"].(string); ok {
		attrs = append(attrs, "plugin", name)
		delete(errCtx, "plugin")
	}
	if len(errCtx) > 0 {
		attrs = append(attrs, "context", errCtx)
	}
	logger.ErrorContext(ctx, msg, attrs...)
}

// Code returns the oops code carried by err, or "" for plain errors and
// errors without a string code.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}
