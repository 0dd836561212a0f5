// Package main provides the rulekit binary: validate workflows, resolve
// requested files to jobs and inspect rules.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/rulekit/pkg/config"
	"github.com/ormasoftchile/rulekit/pkg/kernel/trace"
	"github.com/ormasoftchile/rulekit/pkg/logging"
	"github.com/ormasoftchile/rulekit/pkg/session"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	flagConfig       string
	flagLogLevel     string
	flagLogFormat    string
	flagMaxThreads   int
	flagResources    []string
	flagSkipResource []string
	flagAttempt      int
	flagJSON         bool
)

// settings and log are set by the root command before any subcommand runs.
var (
	settings *config.Settings
	log      *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "rulekit",
	Short: "Rule-based workflow resolver",
	Long: "rulekit loads declarative rule workflows, matches requested files to the rules " +
		"producing them and expands the concrete jobs a scheduler would run.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// setup loads the settings, overlays command-line flags and builds the
// logger.
func setup(cmd *cobra.Command, args []string) error {
	s, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		s.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		s.LogFormat = flagLogFormat
	}
	if flags.Changed("max-threads") {
		s.MaxThreads = flagMaxThreads
	}
	if flags.Changed("attempt") {
		s.Attempt = flagAttempt
	}
	for _, kv := range flagResources {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid --resource %q: expected name=value", kv)
		}
		if s.GlobalResources == nil {
			s.GlobalResources = map[string]any{}
		}
		s.GlobalResources[name] = resourceValue(value)
	}
	s.SkipResources = append(s.SkipResources, flagSkipResource...)
	if err := s.Validate(); err != nil {
		return err
	}

	l, err := logging.New(s.Logging())
	if err != nil {
		return err
	}
	settings, log = s, l
	if s.ConfigFile != "" {
		log.Debugw("config loaded", "file", s.ConfigFile)
	}
	return nil
}

// resourceValue reads integers as integers and everything else as text.
func resourceValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

// open loads a workflow with the current settings.
func open(path string, tw *trace.Writer) (*session.Session, error) {
	return session.Open(path, session.Options{Settings: settings, Log: log, Trace: tw})
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default: ./rulekit.yaml when present)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: human or json")
	pf.IntVar(&flagMaxThreads, "max-threads", 0, "Upper bound for the threads of any job")
	pf.StringArrayVar(&flagResources, "resource", nil, "Set a global resource (name=value), repeatable")
	pf.StringArrayVar(&flagSkipResource, "skip-resource", nil, "Leave a resource unresolved, repeatable")
	pf.IntVar(&flagAttempt, "attempt", 1, "Attempt number handed to resource expressions")
	pf.BoolVar(&flagJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(versionCmd)
}
