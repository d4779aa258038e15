package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/go-lpc/cmd/analyze"
	"github.com/tphakala/go-lpc/cmd/filter"
	"github.com/tphakala/go-lpc/cmd/flags"
	"github.com/tphakala/go-lpc/internal/conf"
	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/logger"
	"github.com/tphakala/go-lpc/internal/observability"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *conf.Context) *cobra.Command {
	var (
		central *logger.CentralLogger
		metrics *observability.Metrics
	)

	rootCmd := &cobra.Command{
		Use:          "lpc",
		Short:        "Linear prediction analysis of sounds",
		Version:      ctx.Build.Version(),
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, ctx)

	rootCmd.AddCommand(
		analyze.Command(ctx),
		filter.Command(ctx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Command line values take precedence over the config file
		if err := flags.Bind(cmd); err != nil {
			return err
		}

		settings, err := conf.Load(ctx.ConfigFile)
		if err != nil {
			return err
		}
		ctx.Settings = settings

		if central, err = initLogging(settings); err != nil {
			return err
		}
		if err := initTelemetry(ctx); err != nil {
			return err
		}
		if metrics, err = initMetrics(ctx); err != nil {
			return err
		}

		logger.Global().Module("main").Debug("settings loaded",
			logger.String("command", cmd.Name()),
			logger.String("version", ctx.Build.Version()),
			logger.String("run_id", ctx.Build.RunID()),
			logger.String("method", settings.Analysis.Method),
			logger.Int("order", settings.Analysis.Order),
			logger.Bool("threads", settings.Threads.Enabled))
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if metrics != nil && ctx.MetricsFile != "" {
			if err := metrics.WriteTextfile(ctx.MetricsFile); err != nil {
				return err
			}
		}
		if central != nil {
			return central.Flush()
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, ctx *conf.Context) {
	fs := rootCmd.PersistentFlags()
	fs.StringVarP(&ctx.ConfigFile, "config", "c", "", "Path to config file")
	fs.StringVar(&ctx.MetricsFile, "metrics-file", "", "Write run metrics to this node exporter textfile")
	flags.Bool(fs, "debug", "d", "debug", "Enable debug output", false)
	flags.Int(fs, "threads", "t", "threads.max", "Maximum number of analysis threads, 0 uses all cores")
	flags.Bool(fs, "parallel", "", "threads.enabled", "Analyse frames on multiple threads", true)
	flags.String(fs, "log-level", "", "log.level", "Log level: trace, debug, info, warn or error")
	flags.String(fs, "log-file", "", "log.file", "Also write JSON logs to this file")
}

// initLogging installs the global logger configured by settings.
func initLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	level := settings.Log.Level
	if settings.Debug {
		level = "debug"
	}

	cfg := &logger.LoggingConfig{DefaultLevel: level}
	if settings.Log.File != "" {
		cfg.FileOutput = &logger.FileOutput{
			Enabled: true,
			Path:    settings.Log.File,
			Level:   level,
		}
	}

	central, err := logger.NewCentralLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return central, nil
}

// initTelemetry enables error reporting when it is configured.
func initTelemetry(ctx *conf.Context) error {
	t := ctx.Settings.Telemetry
	if !t.Enabled {
		errors.SetTelemetryReporter(nil)
		return nil
	}
	return errors.InitSentry(t.DSN, ctx.Build.Release())
}

// initMetrics creates the metrics registry and routes analysis metrics to it.
func initMetrics(ctx *conf.Context) (*observability.Metrics, error) {
	if !ctx.Settings.Metrics.Enabled {
		return nil, nil
	}
	m, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	ctx.Recorder = m.Analysis
	return m, nil
}
