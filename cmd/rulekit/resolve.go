package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/rulekit/pkg/kernel/resolve"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/kernel/trace"
	"github.com/ormasoftchile/rulekit/pkg/render"
)

// --- match ---

var matchCmd = &cobra.Command{
	Use:   "match [workflow.yaml] [path] [name=value ...]",
	Short: "Show the rule producing a path and the wildcards it implies",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	hint, err := resolve.ParseWildcards(args[2:])
	if err != nil {
		return err
	}
	sess, err := open(args[0], nil)
	if err != nil {
		return err
	}
	m, err := sess.Resolver.Match(args[1], hint)
	if err != nil {
		return fmt.Errorf("%s: %w", resolve.Kind(err), err)
	}
	if flagJSON {
		return printJSON(cmd, map[string]any{
			"path":       m.Path,
			"rule":       m.Rule.Name,
			"wildcards":  m.Wildcards,
			"candidates": m.Candidates,
		})
	}
	pairs := [][2]string{{"rule", m.Rule.Name}, {"wildcards", m.Wildcards.String()}}
	if len(m.Candidates) > 1 {
		pairs = append(pairs, [2]string{"candidates", fmt.Sprint(m.Candidates)})
	}
	fmt.Fprint(cmd.OutOrStdout(), render.KeyValues(pairs))
	return nil
}

// --- expand ---

var (
	expandRule      string
	expandWildcards []string
	expandTrace     string
)

var expandCmd = &cobra.Command{
	Use:   "expand [workflow.yaml] [path ...]",
	Short: "Expand the jobs producing the given paths, or one rule with --rule",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExpand,
}

func runExpand(cmd *cobra.Command, args []string) error {
	path, targets := args[0], args[1:]
	if (expandRule == "") == (len(targets) == 0) {
		return fmt.Errorf("give either target paths or --rule")
	}
	if expandRule == "" && len(expandWildcards) > 0 {
		return fmt.Errorf("--wildcard requires --rule")
	}

	var tw *trace.Writer
	if expandTrace != "" {
		var err error
		tw, err = trace.NewFileWriter(expandTrace, uuid.NewString())
		if err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		defer tw.Close()
	}
	sess, err := open(path, tw)
	if err != nil {
		return err
	}

	var jobs []*rule.Job
	if expandRule != "" {
		job, err := expandOne(sess.Resolver, tw, path)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	} else {
		res, err := sess.Resolver.ResolveAll(cmd.Context(), path, targets)
		if err != nil {
			return fmt.Errorf("%s: %w", resolve.Kind(err), err)
		}
		for _, r := range res {
			jobs = append(jobs, r.Job)
		}
	}
	if tw != nil {
		log.Infow("trace written", "file", expandTrace, "run_id", tw.RunID())
	}

	if flagJSON {
		return printJSON(cmd, jobs)
	}
	for _, job := range jobs {
		fmt.Fprint(cmd.OutOrStdout(), render.Job(job))
	}
	return nil
}

// expandOne expands --rule under --wildcard, bracketing the trace like a
// path resolution.
func expandOne(r *resolve.Resolver, tw *trace.Writer, workflow string) (*rule.Job, error) {
	wc, err := resolve.ParseWildcards(expandWildcards)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if tw != nil {
		tw.EmitResolveStart(workflow, nil)
	}
	job, err := r.Expand(expandRule, wc)
	if tw != nil {
		status, n := "completed", 1
		if err != nil {
			status, n = "failed", 0
		}
		tw.EmitResolveComplete(status, n, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resolve.Kind(err), err)
	}
	return job, nil
}

func init() {
	expandCmd.Flags().StringVar(&expandRule, "rule", "", "Expand this rule instead of resolving paths")
	expandCmd.Flags().StringArrayVar(&expandWildcards, "wildcard", nil, "Wildcard value for --rule (name=value), repeatable")
	expandCmd.Flags().StringVar(&expandTrace, "trace", "", "Write a hash-chained resolution trace (JSONL) to this file")
}
