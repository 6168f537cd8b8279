// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package shell

import (
	"errors"

	"github.com/samber/oops"
)

// CodeInvalidRoute marks a route table that failed validation.
const CodeInvalidRoute = "INVALID_ROUTE"

// ErrClosed is returned by a Router after Close.
var ErrClosed = errors.New("router is closed")

// ErrNoActiveSlot is returned by Retry when no slot matches the location.
var ErrNoActiveSlot = errors.New("no plugin is active at the current location")

func errInvalidRoute(route Route, reason string) error {
	return oops.Code(CodeInvalidRoute).
		In("shell").
		With("plugin", route.Name).
		With("base_path", route.BasePath).
		Errorf("invalid route %q: %s", route.BasePath, reason)
}
