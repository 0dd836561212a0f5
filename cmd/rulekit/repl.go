package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/rulekit/pkg/debugger"
)

var replCmd = &cobra.Command{
	Use:   "repl [workflow.yaml]",
	Short: "Launch the interactive resolution debugger for a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	sess, err := open(args[0], nil)
	if err != nil {
		return err
	}
	d := debugger.New(sess.Resolver, filepath.Base(args[0]))
	d.SetOutput(cmd.OutOrStdout())
	return d.Run(cmd.Context())
}
