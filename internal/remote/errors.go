// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package remote

import (
	"github.com/samber/oops"
)

// Error codes for plugin resolution failures.
const (
	CodeUnknownPlugin     = "UNKNOWN_PLUGIN"
	CodeLoadFailed        = "LOAD_FAILED"
	CodeAlreadyRegistered = "ALREADY_REGISTERED"
)

// ErrUnknownPlugin creates an error for a name absent from the registry.
// It is not retryable without a registry change.
func ErrUnknownPlugin(name string) error {
	return oops.Code(CodeUnknownPlugin).
		In("remote").
		With("plugin", name).
		Errorf("unknown plugin %q", name)
}

// ErrLoad wraps a failed fetch or instantiation of a plugin.
func ErrLoad(name string, cause error) error {
	return oops.Code(CodeLoadFailed).
		In("remote").
		With("plugin", name).
		Wrapf(cause, "load plugin %s", name)
}

// ErrAlreadyRegistered creates an error for a duplicate registration.
func ErrAlreadyRegistered(name string) error {
	return oops.Code(CodeAlreadyRegistered).
		In("remote").
		With("plugin", name).
		Errorf("plugin %q already registered", name)
}
