package main

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/rulekit/pkg/ecosystem/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse [workflow.yaml]",
	Short: "Browse rules and expand jobs in a full-screen terminal UI",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	sess, err := open(args[0], nil)
	if err != nil {
		return err
	}
	m := tui.NewModel(sess.Resolver, filepath.Base(args[0]))
	_, err = tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithOutput(cmd.OutOrStdout()),
	).Run()
	return err
}
