package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/bucketsort/internal/config"
	"github.com/harrison/bucketsort/internal/executor"
	"github.com/harrison/bucketsort/internal/history"
	"github.com/harrison/bucketsort/internal/logger"
	"github.com/harrison/bucketsort/internal/report"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <source> <output>",
		Short: "Copy files from source into extension buckets under output",
		Long: `Copy every file below <source> into <output>/<bucket>/, where the bucket is
the lower-cased file extension without the dot, or "no_extension".

The source tree is never modified. Existing files in a bucket are never
overwritten: a colliding name becomes "name (1).ext", "name (2).ext", ...

Configuration is loaded from .bucketsort/config.yaml (or $BUCKETSORT_HOME/config.yaml)
if present. CLI flags override configuration file settings.

Examples:
  bucketsort run ~/Downloads ~/Sorted
  bucketsort run src out --max-workers 8 --retries 5 --retry-delay 1.5
  bucketsort run src out --exclude-glob "*.tmp" --exclude-glob "/cache/**"
  bucketsort run src out --skip-locked --report out/report.html
  bucketsort run src out --history-db ~/.bucketsort/history.db --log-dir logs`,
		Args: cobra.ExactArgs(2),
		RunE: runCommand,
	}

	addConfigFlag(cmd)
	cmd.Flags().Int("max-workers", 0, "Maximum number of concurrent copies (default: min(32, CPUs*5))")
	cmd.Flags().Int("prepare-workers", 0, "Workers creating buckets and naming files (0 = twice max-workers)")
	cmd.Flags().Int("retries", 0, "Retries after the first failed copy attempt (default 3)")
	cmd.Flags().String("retry-delay", "", "Delay before the first retry, doubled after each (seconds or duration, default 0.5)")
	cmd.Flags().Bool("skip-locked", false, "Skip files locked by another process instead of retrying")
	cmd.Flags().StringArray("exclude-glob", nil, "Glob of root-relative paths to exclude (repeatable)")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error (default info)")
	cmd.Flags().String("log-dir", "", "Directory for per-run log files")
	cmd.Flags().String("history-db", "", "SQLite database recording runs and outcomes")
	cmd.Flags().String("report", "", "Write a Markdown (or .html) run report to this path")
	cmd.Flags().Float64("max-copies-per-second", 0, "Throttle copy starts (0 = unlimited)")

	return cmd
}

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .bucketsort/config.yaml)")
}

// loadConfig reads --config, or the default config path when the flag is
// absent. An explicit path must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}

	defaultPath, err := config.DefaultConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg, err := config.LoadConfig(defaultPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// flagOverrides collects the flags set on the command line.
func flagOverrides(cmd *cobra.Command) (config.FlagOverrides, error) {
	var f config.FlagOverrides
	flags := cmd.Flags()

	if flags.Changed("max-workers") {
		v, _ := flags.GetInt("max-workers")
		f.MaxWorkers = &v
	}
	if flags.Changed("prepare-workers") {
		v, _ := flags.GetInt("prepare-workers")
		f.PrepareWorkers = &v
	}
	if flags.Changed("retries") {
		v, _ := flags.GetInt("retries")
		f.Retries = &v
	}
	if flags.Changed("retry-delay") {
		raw, _ := flags.GetString("retry-delay")
		d, err := config.ParseDelay(raw)
		if err != nil {
			return f, fmt.Errorf("invalid --retry-delay %q: %w", raw, err)
		}
		f.RetryDelay = &d
	}
	if flags.Changed("skip-locked") {
		v, _ := flags.GetBool("skip-locked")
		f.SkipLocked = &v
	}
	if flags.Changed("exclude-glob") {
		f.ExcludeGlob, _ = flags.GetStringArray("exclude-glob")
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		f.LogLevel = &v
	}
	if flags.Changed("log-dir") {
		v, _ := flags.GetString("log-dir")
		f.LogDir = &v
	}
	if flags.Changed("history-db") {
		v, _ := flags.GetString("history-db")
		f.HistoryDB = &v
	}
	if flags.Changed("report") {
		v, _ := flags.GetString("report")
		f.Report = &v
	}
	if flags.Changed("max-copies-per-second") {
		v, _ := flags.GetFloat64("max-copies-per-second")
		f.MaxCopiesPerSecond = &v
	}
	return f, nil
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	overrides, err := flagOverrides(cmd)
	if err != nil {
		return err
	}
	cfg.MergeWithFlags(overrides)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sinks := []logger.Sink{logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)}
	var fileLog *logger.FileLogger
	if cfg.LogDir != "" {
		fileLog, err = logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLog.Close()
		sinks = append(sinks, fileLog)
	}
	log := logger.NewMultiLogger(sinks...)

	orch := executor.NewOrchestrator(executor.Options{
		MaxWorkers:         cfg.MaxWorkers,
		PrepareWorkers:     cfg.PrepareWorkers,
		Retries:            cfg.Retries,
		RetryDelay:         cfg.RetryDelay,
		SkipLocked:         cfg.SkipLocked,
		ExcludeGlobs:       cfg.ExcludeGlob,
		MaxCopiesPerSecond: cfg.MaxCopiesPerSecond,
		HandleSignals:      true,
	}, log)

	if cfg.HistoryDB != "" {
		store, err := history.NewStore(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer store.Close()
		orch.SetRecorder(store)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	summary, runErr := orch.Run(ctx, args[0], args[1])
	if executor.IsPreflightError(runErr) {
		return fmt.Errorf("cannot start run: %w", runErr)
	}

	if summary != nil && cfg.Report != "" {
		if err := report.WriteFile(summary, cfg.Report); err != nil {
			log.LogWarn(fmt.Sprintf("Failed to write report: %v", err))
		} else {
			log.LogInfo(fmt.Sprintf("Report written to %s", cfg.Report))
		}
	}

	if fileLog != nil {
		log.LogInfo(fmt.Sprintf("Log written to %s", fileLog.RunFile()))
	}

	// Per-file failures and skips are reported in the summary, not as an error.
	return runErr
}
