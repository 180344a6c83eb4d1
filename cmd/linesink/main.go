package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loykin/linesink"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	config := DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "linesink",
		Short: "Line-atomic output for concurrent writers",
		Long: `linesink demonstrates a writer that lets many goroutines share one output
without ever mixing bytes of two goroutines within a line.

Examples:
  # 8 writers printing through the synchronized writer
  linesink run --writers 8

  # Same run without synchronization, written to a file and checked
  linesink run --safe=false --sink file -o /tmp/out.log --verify

  # Check an existing output file
  linesink verify /tmp/out.log --writers 8 --lines 1000`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadFromViper(cmd); err != nil {
				return err
			}
			slog.SetDefault(newLogger(config.Log, cmd.ErrOrStderr()))
			return config.Validate()
		},
	}
	config.SetupPersistentFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start concurrent writers printing patterned lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCommand(ctx, config, cmd.OutOrStdout())
		},
	}
	config.SetupRunFlags(runCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify [FILE]",
		Short: "Check that every line of an output belongs to a single writer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			_, err := verifyFile(path, cmd.OutOrStdout(), config.Run, config.Verify.AllowPartial)
			return err
		},
	}
	config.SetupVerifyFlags(verifyCmd)

	rootCmd.AddCommand(runCmd, verifyCmd)
	return rootCmd
}

func runCommand(ctx context.Context, config *Config, stdout io.Writer) error {
	logger := slog.Default().With("run", uuid.NewString())

	// Optionally start Prometheus metrics endpoint
	var metricsStop = func() error { return nil }
	if config.Prometheus.Enable {
		stop, err := linesink.StartMetrics(config.Prometheus.Addr)
		if err != nil {
			return fmt.Errorf("failed to start prometheus endpoint: %w", err)
		}
		metricsStop = stop
	}
	defer func() { _ = metricsStop() }()

	out, err := buildSink(config)
	if err != nil {
		return err
	}

	logger.Info("starting writers",
		"writers", config.Run.Writers, "lines", config.Run.Lines,
		"safe", config.Run.Safe, "sink", config.Sink.Type)

	res, err := runWriters(ctx, config.Run, config.Sink.Type, out, logger)
	if err != nil {
		return err
	}
	logger.Info("writers finished", "lines", res.Lines, "bytes", res.Bytes, "elapsed", res.Elapsed)

	if config.Run.Verify {
		_, err := verifyFile(config.Sink.File.Path, stdout, config.Run, config.Run.Trailer != "")
		return err
	}
	return nil
}
