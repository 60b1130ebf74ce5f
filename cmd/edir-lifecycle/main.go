package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/devplatform/edir-lifecycle/internal/batch"
	"github.com/devplatform/edir-lifecycle/internal/config"
	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/lifecycle"
	"github.com/devplatform/edir-lifecycle/internal/models"
	"github.com/devplatform/edir-lifecycle/internal/notify"
	"github.com/devplatform/edir-lifecycle/internal/prometheus"
	"github.com/devplatform/edir-lifecycle/internal/provisioning"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags)
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		inFile   string
		outFile  string
		logFile  string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "edir-lifecycle",
		Short: "Create, update, archive and delete eDirectory users from a JSON batch",
		Long: "Reads user actions from a JSON batch file, applies them to eDirectory over LDAP " +
			"and writes one CSV result row per action.\n\n" +
			"Site constants (directory address, containers, groups, notification and " +
			"provisioning endpoints) are read from the environment.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closeLog, err := setup(cmd, logFile, logLevel)
			if err != nil {
				return err
			}
			defer closeLog.Close()

			prometheus.Init()

			directory := prometheus.NewDirectoryCollector(ldap.NewClient(cfg, logger))
			mailer := notify.NewMailer(cfg, logger)
			provisioner := provisioning.NewClient(cfg, logger).WithStatusRecorder(prometheus.RecordProvisioning)
			engine := lifecycle.NewEngine(cfg, directory, mailer, provisioner, logger).WithRunID(uuid.NewString())

			summary, err := runBatch(cmd.Context(), engine, inFile, outFile, logger)
			if cfg.MetricsTextfile != "" {
				prometheus.LastRunTimestamp.SetToCurrentTime()
				if werr := prometheus.WriteTextfile(cfg.MetricsTextfile); werr != nil {
					logger.WithError(werr).Warn("Metrics were not written")
				}
			}
			if err != nil {
				logger.WithError(err).Error("Batch run failed")
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d actions processed: %d succeeded, %d failed\n",
				summary.Total, summary.Succeeded, summary.Total-summary.Succeeded)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inFile, "file", "f", "", "Input JSON file with user actions and params")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Output CSV file with results of eDir user actions")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Run log file (overrides LOG_FILE)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("out")

	cmd.AddCommand(newInitCmd(&logFile, &logLevel))

	return cmd
}

// setup loads the configuration, applies flag overrides and opens the run log
func setup(cmd *cobra.Command, logFile, logLevel string) (*config.Config, *logrus.Logger, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = logFile
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, nil, nil, err
		}
	}

	logger, closeLog, err := setupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

// summary counts the outcomes of a run
type summary struct {
	Total     int
	Succeeded int
}

// runBatch reads the batch, runs every action through the engine and streams
// the outcomes to the result file.
func runBatch(ctx context.Context, engine *lifecycle.Engine, inFile, outFile string, logger *logrus.Logger) (summary, error) {
	var sum summary

	requests, err := batch.ReadFile(inFile)
	if err != nil {
		return sum, err
	}
	logger.WithFields(logrus.Fields{
		"file":    inFile,
		"actions": len(requests),
	}).Info("Opened input file")

	out, err := os.Create(outFile)
	if err != nil {
		return sum, fmt.Errorf("failed to open output file: %w", err)
	}
	defer func() {
		out.Close()
		logger.WithField("file", outFile).Info("Closed output file")
	}()

	results, err := batch.NewWriter(out)
	if err != nil {
		return sum, err
	}

	started := time.Now()
	err = engine.Run(ctx, requests, func(o *models.Outcome) error {
		sum.Total++
		if o.Success {
			sum.Succeeded++
		}
		prometheus.ActionsTotal.WithLabelValues(actionLabel(o.Action), o.Kind).Inc()
		prometheus.ActionDuration.WithLabelValues(actionLabel(o.Action)).Observe(time.Since(started).Seconds())
		started = time.Now()
		return results.Write(o)
	})
	if errors.Is(err, context.Canceled) {
		return sum, fmt.Errorf("interrupted after %d of %d actions", sum.Total, len(requests))
	}
	return sum, err
}

// actionLabel keeps the metric label set closed
func actionLabel(action string) string {
	return models.ParseAction(action).String()
}

func setupLogger(cfg *config.Config, console io.Writer) (*logrus.Logger, io.Closer, error) {
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(f)

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	// Warnings and errors also go to the operator's console
	logger.AddHook(&writer.Hook{
		Writer: console,
		LogLevels: []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
		},
	})

	return logger, f, nil
}
