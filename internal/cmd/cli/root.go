// Package cli contains the Cobra commands of the pagelog binary.
package cli

import (
	"fmt"

	cfgpkg "github.com/rzbill/pagelog/internal/config"
	"github.com/rzbill/pagelog/internal/runtime"
	"github.com/spf13/cobra"
)

// NewRoot constructs the root command and registers every subcommand.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "pagelog",
		Short:         "Inspect and drive a page-aligned block log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "JSON config file")
	pf.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	pf.String("backend", "", "Block medium: file|pebble")
	pf.Int("page-size", 0, "Page size in bytes (power of two)")
	pf.Uint64("file-size", 0, "Block size in bytes (multiple of page size)")
	pf.String("log-level", "", "Log level: debug|info|warn|error")
	pf.String("log-format", "", "Log format: text|json")
	pf.String("log-output", "", "Log output: console|null|file:<path>")

	root.AddCommand(
		newInspectCommand(),
		newAppendCommand(),
		newScanCommand(),
		newFollowCommand(),
		newPageCommand(),
		newPruneCommand(),
		newVerifyCommand(),
	)
	return root
}

// loadConfig layers defaults, the config file, PAGELOG_* variables and flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	cfgpkg.FromEnv(&cfg)

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("page-size") {
		cfg.PageSize, _ = flags.GetInt("page-size")
	}
	if flags.Changed("file-size") {
		cfg.FileSize, _ = flags.GetUint64("file-size")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("log-output") {
		cfg.Log.Output, _ = flags.GetString("log-output")
	}
	return cfg, nil
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, readOnly bool, fn func(*runtime.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := runtime.Open(runtime.Options{Config: cfg, ReadOnly: readOnly})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	return fn(rt)
}
