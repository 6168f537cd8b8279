// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/decouple-mfe/mfeshell/internal/plugin"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print or write the plugin manifest JSON Schema",
		Long: `Generate the JSON Schema for plugin.yaml. The schema is printed to
stdout unless --out names a file, e.g.:
  mfeshell schema --out schemas/plugin.schema.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := plugin.GenerateSchema()
			if err != nil {
				return fmt.Errorf("failed to generate schema: %w", err)
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(append(schema, '\n'))
				return err
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			if err := os.WriteFile(outPath, schema, 0o600); err != nil {
				return fmt.Errorf("failed to write schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "write the schema to this file instead of stdout")

	return cmd
}
