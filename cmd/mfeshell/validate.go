// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/decouple-mfe/mfeshell/internal/plugin"
	"github.com/decouple-mfe/mfeshell/internal/plugin/capability"
	pluginlua "github.com/decouple-mfe/mfeshell/internal/plugin/lua"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [plugins-dir]",
		Short: "Validate plugin manifests and Lua sources without starting the shell",
		Long: `Validates every plugin.yaml under the plugins directory against the
manifest schema and compiles local Lua entries with capability enforcement.
Remote entries are not fetched. Exits non-zero if any plugin is invalid.

Useful in CI pipelines:
  mfeshell validate plugins`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dir = cfg.Plugins.Dir
			}
			return runValidate(cmd.Context(), cmd.OutOrStdout(), dir)
		},
	}
}

func runValidate(ctx context.Context, out io.Writer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read plugins directory: %w", err)
	}

	host := pluginlua.NewHost(pluginlua.WithEnforcer(capability.NewEnforcer()))
	defer func() { _ = host.Close(ctx) }()

	var checked, failed int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(pluginDir, plugin.ManifestFile)); err != nil {
			continue
		}

		checked++
		manifest, err := validatePlugin(ctx, host, pluginDir)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s: %v\n", entry.Name(), err)
			continue
		}
		fmt.Fprintf(out, "ok    %s %s (%s)\n", manifest.Name, manifest.Version, manifest.Type)
	}

	if checked == 0 {
		return fmt.Errorf("no plugins found in %s", dir)
	}
	if failed > 0 {
		return fmt.Errorf("validation failed: %d of %d plugins invalid", failed, checked)
	}
	return nil
}

func validatePlugin(ctx context.Context, host *pluginlua.Host, dir string) (*plugin.Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(filepath.Join(dir, plugin.ManifestFile)))
	if err != nil {
		return nil, err
	}
	if err := plugin.ValidateSchema(data); err != nil {
		return nil, fmt.Errorf("schema: %s", plugin.FormatSchemaError(err))
	}
	manifest, err := plugin.ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if err := manifest.CompatibleWithHost(); err != nil {
		return nil, err
	}

	switch manifest.Type {
	case plugin.TypeGo:
		if _, ok := builtinModules[manifest.Name]; !ok {
			return nil, fmt.Errorf("no compiled-in plugin named %q", manifest.Name)
		}
	case plugin.TypeLua:
		if manifest.LuaPlugin.URL != "" {
			return manifest, nil
		}
		source, err := os.ReadFile(filepath.Clean(filepath.Join(dir, filepath.FromSlash(manifest.LuaPlugin.Entry))))
		if err != nil {
			return nil, err
		}
		if _, err := host.Compile(ctx, manifest, source); err != nil {
			return nil, err
		}
	}
	return manifest, nil
}
