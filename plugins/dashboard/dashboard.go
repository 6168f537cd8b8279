// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package dashboard is the built-in dashboard micro-frontend (mfeA).
package dashboard

import (
	"fmt"

	"github.com/decouple-mfe/mfeshell/pkg/contract"
	"github.com/decouple-mfe/mfeshell/pkg/pluginsdk"
)

// Name is the registry name of the plugin.
const Name = "mfeA"

// Version is the module version reported to the shell.
const Version = "1.0.0"

// Config returns the app definition.
func Config() pluginsdk.AppConfig {
	return pluginsdk.AppConfig{
		Name:  Name,
		Title: "MFE A - Dashboard",
		Routes: []pluginsdk.Route{
			{Path: "/", Title: "Dashboard Home", Body: home},
			{Path: "/about", Title: "About Dashboard", Body: static("This is MFE A, a compiled-in Go plugin.")},
			{Path: "/settings", Title: "Settings", Body: static("General settings page. Try /settings/profile.")},
			{Path: "/settings/profile", Title: "Profile", Body: static("Deep-linked profile page inside MFE A.")},
		},
	}
}

// Module returns the plugin module for registration.
func Module() *contract.Module {
	return pluginsdk.Module(Config(), Version)
}

func home(svc contract.ServiceBag) string {
	authenticated := svc.Auth != nil && svc.Auth.IsAuthenticated()
	return fmt.Sprintf("Authenticated: %t", authenticated)
}

func static(text string) func(contract.ServiceBag) string {
	return func(contract.ServiceBag) string { return text }
}
