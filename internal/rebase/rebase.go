// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package rebase translates between shell-absolute paths and
// plugin-relative sub-paths under a base path owned by the plugin.
//
// A base path never ends with "/" and a sub-path always starts with "/".
// All functions are pure and total.
package rebase

import "strings"

// ToSubPath returns the part of absolutePath below basePath, or "/" when
// nothing remains. A path outside basePath also yields "/".
//
//	ToSubPath("/mfe-a/settings/profile", "/mfe-a") == "/settings/profile"
//	ToSubPath("/mfe-a", "/mfe-a") == "/"
func ToSubPath(absolutePath, basePath string) string {
	rest, ok := strings.CutPrefix(absolutePath, basePath)
	if !ok || rest == "" {
		return "/"
	}
	return rest
}

// ToAbsolutePath joins subPath onto basePath. The root sub-path maps to
// basePath itself.
func ToAbsolutePath(subPath, basePath string) string {
	if subPath == "/" {
		return basePath
	}
	return basePath + subPath
}

// Under reports whether absolutePath is basePath or lies below it on a
// segment boundary, so "/mfe-ab" is not under "/mfe-a".
func Under(absolutePath, basePath string) bool {
	rest, ok := strings.CutPrefix(absolutePath, basePath)
	if !ok {
		return false
	}
	return rest == "" || strings.HasPrefix(rest, "/") || basePath == ""
}
