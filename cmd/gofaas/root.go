package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/caffeineduck/gofaas/engine"
	"github.com/caffeineduck/gofaas/executor"
	"github.com/caffeineduck/gofaas/hostfunc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// cfg is the effective file configuration, loaded before any command runs.
	cfg    = DefaultConfig()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "gofaas [file]",
	Short: "Run JavaScript handler functions in an embedded engine",
	Long: `gofaas - Run JavaScript handler functions, function-as-a-service style.

A handler file defines a global function named handler. gofaas passes it a
JSON request and prints the JSON it returns. Handlers can only reach the host
through read_file, write_file and remove_file; confine those with --mount.`,
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	RunE:              runRun, // Default to run command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose (debug) logging")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	// Add run-specific flags to root (for default command)
	addRunFlags(rootCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	configPath, _ := cmd.Flags().GetString("config")

	l, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger = l
	engine.SetLogger(l)

	loaded, err := LoadConfigFromPath(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// newLogger builds a colored development logger when verbose, otherwise a
// JSON logger that only reports warnings and errors.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return zc.Build()
}

func parseMount(spec string) (hostfunc.Mount, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return hostfunc.Mount{}, fmt.Errorf("invalid mount spec %q (expected virtual:host:mode)", spec)
	}

	mode, err := hostfunc.ParseMountMode(parts[2])
	if err != nil {
		return hostfunc.Mount{}, err
	}

	return hostfunc.Mount{
		VirtualPath: parts[0],
		HostPath:    parts[1],
		Mode:        mode,
	}, nil
}

// addExecutorFlags registers the flags shared by every command that runs
// handlers. Flags left unset fall back to the config file.
func addExecutorFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", DefaultConfig().Timeout.Std(), "Invocation timeout")
	cmd.Flags().StringSlice("mount", nil, "Mount filesystem virtual:host:mode (repeatable)")
	cmd.Flags().Int("max-concurrent", DefaultConfig().MaxConcurrent, "Max invocations running at once")
	cmd.Flags().Int("pool-size", DefaultConfig().PoolSize, "Warm instances kept ready")

	// Security limits
	cmd.Flags().Int64("fs-max-file", DefaultConfig().Limits.MaxFileSize, "Max file read size")
	cmd.Flags().Int64("fs-max-write", DefaultConfig().Limits.MaxWriteSize, "Max file write size")
	cmd.Flags().Int("fs-max-path", DefaultConfig().Limits.MaxPathLength, "Max path length")
}

// buildExecutorOpts merges the config file with any flags set on cmd.
func buildExecutorOpts(cmd *cobra.Command) ([]executor.ExecutorOption, error) {
	c := cfg
	flags := cmd.Flags()

	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		c.Timeout = Duration(d)
	}
	if flags.Changed("max-concurrent") {
		c.MaxConcurrent, _ = flags.GetInt("max-concurrent")
	}
	if flags.Changed("pool-size") {
		c.PoolSize, _ = flags.GetInt("pool-size")
	}
	if flags.Changed("fs-max-file") {
		c.Limits.MaxFileSize, _ = flags.GetInt64("fs-max-file")
	}
	if flags.Changed("fs-max-write") {
		c.Limits.MaxWriteSize, _ = flags.GetInt64("fs-max-write")
	}
	if flags.Changed("fs-max-path") {
		c.Limits.MaxPathLength, _ = flags.GetInt("fs-max-path")
	}

	mounts, err := c.mounts()
	if err != nil {
		return nil, err
	}
	if flags.Changed("mount") {
		specs, _ := flags.GetStringSlice("mount")
		for _, spec := range specs {
			m, err := parseMount(spec)
			if err != nil {
				return nil, err
			}
			mounts = append(mounts, m)
		}
	}

	opts := []executor.ExecutorOption{
		executor.WithLogger(logger),
		executor.WithDefaultTimeout(c.Timeout.Std()),
		executor.WithMaxConcurrent(c.MaxConcurrent),
		executor.WithPoolSize(c.PoolSize),
	}
	for _, m := range mounts {
		opts = append(opts, executor.WithMount(m.VirtualPath, m.HostPath, m.Mode))
	}
	if c.Limits.MaxFileSize > 0 {
		opts = append(opts, executor.WithFSMaxFileSize(c.Limits.MaxFileSize))
	}
	if c.Limits.MaxWriteSize > 0 {
		opts = append(opts, executor.WithFSMaxWriteSize(c.Limits.MaxWriteSize))
	}
	if c.Limits.MaxPathLength > 0 {
		opts = append(opts, executor.WithFSMaxPathLength(c.Limits.MaxPathLength))
	}
	return opts, nil
}

func newExecutor(cmd *cobra.Command) (*executor.Executor, error) {
	opts, err := buildExecutorOpts(cmd)
	if err != nil {
		return nil, err
	}
	return executor.New(opts...)
}
