package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/rulekit/pkg/kernel/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Resolution trace operations",
}

var traceVerifyCmd = &cobra.Command{
	Use:   "verify [trace.jsonl]",
	Short: "Check a resolution trace's hash chain and signature and summarize the run",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceVerify,
}

func runTraceVerify(cmd *cobra.Command, args []string) error {
	rep, err := trace.VerifyFile(args[0])
	if err != nil {
		return err
	}
	if flagJSON {
		if err := printJSON(cmd, rep); err != nil {
			return err
		}
	} else {
		printReport(cmd, rep)
	}

	switch {
	case !rep.Intact:
		return fmt.Errorf("trace chain broken at event %d", rep.BrokenAt)
	case rep.Signature == trace.SignatureInvalid:
		return fmt.Errorf("trace signature does not match")
	}
	return nil
}

func printReport(cmd *cobra.Command, rep *trace.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n", rep.RunID, rep.Workflow)
	if !rep.Intact {
		fmt.Fprintf(out, "✗ Chain broken at event %d\n  %s\n", rep.BrokenAt, rep.Problem)
		return
	}
	fmt.Fprintf(out, "✓ Chain integrity: %d events, no breaks\n", rep.Events)

	if rep.Complete {
		fmt.Fprintf(out, "  resolution %s: %d jobs\n", rep.Status, rep.Jobs)
	} else {
		fmt.Fprintf(out, "! Trace ends before resolve_complete (%d jobs so far)\n", rep.Jobs)
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(out, "  ✗ %s: %s: %s\n", f.Path, f.Kind, f.Message)
	}

	switch rep.Signature {
	case trace.SignatureValid:
		fmt.Fprintf(out, "✓ Signature valid: signed by key %q\n", rep.SigningKeyID)
	case trace.SignatureUnchecked:
		fmt.Fprintf(out, "! Signature present (key %q) but %s is not set\n", rep.SigningKeyID, trace.SigningKeyEnv)
	case trace.SignatureInvalid:
		fmt.Fprintf(out, "✗ Signature invalid (key %q)\n", rep.SigningKeyID)
	}
}

func init() {
	traceCmd.AddCommand(traceVerifyCmd)
}
