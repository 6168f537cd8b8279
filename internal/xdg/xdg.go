// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package xdg provides XDG Base Directory paths for mfeshell.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "mfeshell"

// configFileName is the file looked up in ConfigDir when no --config is given.
const configFileName = "config.yaml"

// ConfigDir returns the XDG config directory for mfeshell.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// CacheDir returns the XDG cache directory for mfeshell.
// Checks XDG_CACHE_HOME first, falls back to ~/.cache.
func CacheDir() string {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".cache")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), configFileName)
}

// FindConfig returns ConfigFile when it exists as a regular file.
func FindConfig() (string, bool) {
	path := ConfigFile()
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}
