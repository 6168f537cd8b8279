// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package analytics is the built-in analytics micro-frontend (mfeB).
package analytics

import (
	"fmt"

	"github.com/decouple-mfe/mfeshell/pkg/contract"
	"github.com/decouple-mfe/mfeshell/pkg/pluginsdk"
)

// Name is the registry name of the plugin.
const Name = "mfeB"

// Version is the module version reported to the shell.
const Version = "1.0.0"

// Config returns the app definition.
func Config() pluginsdk.AppConfig {
	return pluginsdk.AppConfig{
		Name:  Name,
		Title: "MFE B - Analytics",
		Routes: []pluginsdk.Route{
			{Path: "/", Title: "Analytics Overview", Body: overview},
			{Path: "/reports", Title: "Reports", Body: func(contract.ServiceBag) string {
				return "Generated reports list."
			}},
			{Path: "/reports/detail", Title: "Report Detail", Body: func(contract.ServiceBag) string {
				return "Deep-linked report detail page inside MFE B."
			}},
		},
	}
}

// Module returns the plugin module for registration.
func Module() *contract.Module {
	return pluginsdk.Module(Config(), Version)
}

func overview(svc contract.ServiceBag) string {
	api := "unknown"
	if svc.Config != nil {
		if v, ok := svc.Config.Get("apiUrl"); ok {
			api = fmt.Sprint(v)
		}
	}
	return "Charts and graphs would live here. Data source: " + api
}
