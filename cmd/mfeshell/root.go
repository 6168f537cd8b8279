// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/decouple-mfe/mfeshell/internal/config"
	"github.com/decouple-mfe/mfeshell/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the mfeshell CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mfeshell",
		Short: "mfeshell - a micro-frontend shell",
		Long: `mfeshell hosts independently built micro-frontend plugins behind one
address bar. Plugins are resolved lazily, mounted on demand and kept in
step with the shell's navigation in both directions.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/mfeshell/config.yaml if present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewPluginsCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig loads the config file and the flags set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		if found, ok := xdg.FindConfig(); ok {
			slog.Debug("using default config file", "path", found)
			path = found
		}
	}
	return config.Load(path, cmd.Flags())
}
