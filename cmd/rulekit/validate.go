package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/rulekit/pkg/kernel/validate"
	"github.com/ormasoftchile/rulekit/pkg/render"
)

var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Validate a workflow file (YAML or TOML) against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	_, w, errs := validate.ValidateFile(path)
	failed := validate.HasErrors(errs)

	if flagJSON {
		out := map[string]any{"path": path, "valid": !failed, "errors": errs}
		if w != nil {
			out["rules"] = len(w.Rules())
		}
		if err := printJSON(cmd, out); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), render.Validation(path, errs))
	}
	if failed {
		return fmt.Errorf("validation failed with %d error(s)", len(validate.Errors(errs)))
	}
	log.Debugw("workflow valid", "path", path, "rules", len(w.Rules()), "warnings", len(validate.Warnings(errs)))
	return nil
}
