// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// pluginsConfig holds configuration for the plugins command.
type pluginsConfig struct {
	jsonOutput bool
}

// NewPluginsCmd creates the plugins subcommand.
func NewPluginsCmd() *cobra.Command {
	cfg := &pluginsConfig{}

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins the shell would register",
		Long: `Discover Lua plugins, register the compiled-in plugins and list them
with the route each one owns. Nothing is mounted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlugins(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output plugins as JSON")

	return cmd
}

func runPlugins(cmd *cobra.Command, pcfg *pluginsConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Only warnings matter here; the list goes to stdout.
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	app, err := newShellApp(cmd.Context(), cfg, logger, io.Discard)
	if err != nil {
		return fmt.Errorf("failed to build shell: %w", err)
	}
	defer func() { _ = app.close() }()

	infos := app.plugins()
	if pcfg.jsonOutput {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	return writePluginTable(cmd.OutOrStdout(), infos)
}

// writePluginTable formats plugins as an aligned table.
func writePluginTable(w io.Writer, infos []PluginInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSOURCE\tROUTE\tLOADED")
	for _, info := range infos {
		route := info.BasePath
		if route == "" {
			route = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", info.Name, info.Source, route, info.Cached)
	}
	return tw.Flush()
}
