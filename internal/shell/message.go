// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package shell

import (
	"fmt"

	"github.com/decouple-mfe/mfeshell/internal/loader"
	"github.com/decouple-mfe/mfeshell/internal/remote"
	"github.com/decouple-mfe/mfeshell/pkg/errutil"
)

// UserMessage returns the text shown in place of a plugin that is not
// mounted, or "" when the session needs no message.
func UserMessage(s loader.Session) string {
	switch s.Status {
	case loader.StatusLoading:
		return fmt.Sprintf("Loading %s…", s.Slot.Name)
	case loader.StatusFailed:
		if errutil.Code(s.Err) == remote.CodeUnknownPlugin {
			return fmt.Sprintf("Unknown plugin %q", s.Slot.Name)
		}
		msg := "unknown error"
		if s.Err != nil {
			msg = s.Err.Error()
		}
		return fmt.Sprintf("Error loading %s: %s", s.Slot.Name, msg)
	case loader.StatusIdle, loader.StatusMounted:
		return ""
	default:
		return ""
	}
}
