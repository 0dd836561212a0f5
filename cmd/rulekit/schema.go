package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/rulekit/pkg/kernel/schema"
)

// --- schema export ---

var schemaOut string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the workflow JSON Schema to stdout or a file",
	Args:  cobra.NoArgs,
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	if schemaOut != "" {
		if err := os.WriteFile(schemaOut, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write schema: %w", err)
		}
		log.Infow("schema written", "file", schemaOut)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rulekit %s (build: %s, schema: %s)\n", version, commit, schema.APIVersion)
	},
}

func init() {
	schemaExportCmd.Flags().StringVar(&schemaOut, "out", "", "Write the schema to this file")
	schemaCmd.AddCommand(schemaExportCmd)
}
