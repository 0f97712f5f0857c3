package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/uiwatch/artifacts"
	"github.com/johnstarich/uiwatch/config"
	"github.com/johnstarich/uiwatch/consts"
	"github.com/johnstarich/uiwatch/harness"
	"github.com/johnstarich/uiwatch/recorder"
	"github.com/johnstarich/uiwatch/redactor"
	"github.com/johnstarich/uiwatch/server"
	"github.com/johnstarich/uiwatch/worker"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func development() bool {
	return os.Getenv("DEVELOPMENT") == "true"
}

func newLogger() (*zap.Logger, error) {
	if development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newRootCommand() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "uiwatch",
		Short:         "Watch a web UI with a real browser and report failures with screenshots and recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       consts.Version,
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a TOML config file. Defaults to "+config.DefaultFile+" if present")

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, nil, errors.Wrap(err, "Invalid configuration")
		}
		logger, err := newLogger()
		return cfg, logger, err
	}

	root.AddCommand(
		newConfigCommand(load),
		newCheckCommand(load),
		newServeCommand(load),
		newRecordCommand(load),
	)
	return root
}

type loader func() (*config.Config, *zap.Logger, error)

func newConfigCommand(load loader) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if reveal {
				encoder := redactor.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(cfg)
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(cfg)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Include secrets, like the SMTP password")
	return cmd
}

func newCheckCommand(load loader) *cobra.Command {
	var selector string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Open the base URL once and report a failure if the page does not load",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			h := harness.FromConfig(cfg, harness.Options{Logger: logger, BrowserDebug: development()})
			if !runCheck(h, "check", selector, logger) {
				return errors.New("Check failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&selector, "selector", "body", "CSS selector that must become visible")
	return cmd
}

func newServeCommand(load loader) *cobra.Command {
	var (
		addr      string
		interval  time.Duration
		selector  string
		retention time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve failure reports and artifacts, optionally checking the base URL on an interval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			gin.SetMode(gin.ReleaseMode)

			ctx := cmd.Context()
			index := server.NewIndex(retention)
			if interval > 0 {
				h := harness.FromConfig(cfg, harness.Options{Logger: logger, Publisher: index, BrowserDebug: development()})
				go watch(ctx, h, interval, selector, logger)
			}
			err = server.Run(ctx, addr, index, artifacts.NewStore(cfg.ArtifactsDir), logger)
			if err != nil {
				logger.Error("Server run failed", zap.Error(err))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "0.0.0.0:8080", "Address the server listens on")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Check the base URL this often. Zero disables checks")
	cmd.Flags().StringVar(&selector, "selector", "body", "CSS selector that must become visible")
	cmd.Flags().DurationVar(&retention, "retention", server.DefaultRetention, "How long failure reports are kept")
	return cmd
}

func watch(ctx context.Context, h *harness.Harness, interval time.Duration, selector string, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		runCheck(h, "watch", selector, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newRecordCommand(load loader) *cobra.Command {
	var (
		duration time.Duration
		name     string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the screen briefly to verify the recorder works",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			rec := recorder.New(recorder.Config{
				Store:       artifacts.NewStore(cfg.ArtifactsDir),
				Command:     recorder.FFmpeg(cfg.RecorderBinary),
				StopTimeout: cfg.RecorderStopTimeout,
				Logger:      logger,
			})
			ctx := worker.WithID(cmd.Context(), "record")
			if err := rec.Start(ctx, name); err != nil {
				return err
			}
			select {
			case <-time.After(duration):
			case <-ctx.Done():
			}
			path, err := rec.Stop(worker.WithID(context.Background(), "record"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "How long to record")
	cmd.Flags().StringVar(&name, "name", "record", "Name used in the recording's file name")
	return cmd
}
