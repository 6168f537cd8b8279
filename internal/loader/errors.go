// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package loader

import (
	"errors"

	"github.com/samber/oops"
)

// CodeMountFailed marks a plugin whose Mount returned an error or panicked.
const CodeMountFailed = "MOUNT_FAILED"

// ErrClosed is returned when activating a closed controller.
var ErrClosed = errors.New("controller is closed")

// ErrMount wraps a failed Mount call.
func ErrMount(name string, cause error) error {
	return oops.Code(CodeMountFailed).
		In("loader").
		With("plugin", name).
		Wrapf(cause, "mount plugin %s", name)
}
