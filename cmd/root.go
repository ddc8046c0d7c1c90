// Package cmd implements the patent-reminders command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/patent-reminders/classify"
	"github.com/dhcgn/patent-reminders/config"
	"github.com/dhcgn/patent-reminders/extract"
	"github.com/dhcgn/patent-reminders/filter"
	"github.com/dhcgn/patent-reminders/scan"
	"github.com/dhcgn/patent-reminders/source"
	"github.com/dhcgn/patent-reminders/stats"
	"github.com/dhcgn/patent-reminders/storage"
)

var rootCmd = &cobra.Command{
	Use:          "patent-reminders",
	Short:        "Extract patent deadlines, certificates and invoices from agency mail",
	SilenceUsage: true,
}

// Execute registers the shared flags and runs the selected subcommand. An
// interrupt cancels the command context.
func Execute() error {
	if err := config.RegisterFlags(rootCmd); err != nil {
		return fmt.Errorf("failed to register CLI flags: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// env is what every subcommand starts from.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	cleanup func() error
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, cleanup, err := setupLogger(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &env{cfg: cfg, logger: logger, cleanup: cleanup}, nil
}

func (e *env) close() {
	_ = e.cleanup()
}

// pipeline builds the scan pipeline over the configured mail directory.
func (e *env) pipeline(status scan.StatusReader, metrics *stats.Metrics) (*scan.Pipeline, *storage.Store, *filter.Filter, error) {
	if err := e.cfg.RequireMailDir(); err != nil {
		return nil, nil, nil, err
	}
	src, err := source.NewDir(e.cfg.MailDir, e.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	files, err := storage.New(e.cfg.StorageDir)
	if err != nil {
		return nil, nil, nil, err
	}
	f, err := e.filter()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []classify.Option{
		classify.WithLogger(e.logger),
		classify.WithNoticeKeywords(e.cfg.NoticeKeywords),
	}
	if e.cfg.ClassifierEnabled() {
		opts = append(opts, classify.WithBackend(classify.NewOpenAIBackend(e.cfg.ClassifierKey, e.cfg.ClassifierURL, e.cfg.ClassifierModel)))
		e.logger.Info("external notice classifier enabled", "url", e.cfg.ClassifierURL, "model", e.cfg.ClassifierModel)
	}

	reminder := extract.DefaultReminderOptions()
	reminder.SenderDomain = e.cfg.SenderDomain
	reminder.RefineTitle = e.cfg.RefineTitles

	p, err := scan.New(scan.Config{
		Source:        src,
		Saver:         files,
		Reminder:      reminder,
		InvoiceMarker: e.cfg.InvoiceMarker,
		Filter:        f,
		Classifier:    classify.New(opts...),
		Status:        status,
		Metrics:       metrics,
		Logger:        e.logger,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return p, files, f, nil
}

func (e *env) filter() (*filter.Filter, error) {
	f, err := filter.New(filter.Options{
		IncludeHeader: e.cfg.IncludeHeader,
		IncludeBody:   e.cfg.IncludeBody,
		ExcludeHeader: e.cfg.ExcludeHeader,
		ExcludeBody:   e.cfg.ExcludeBody,
	})
	if err != nil {
		return nil, fmt.Errorf("create filter: %w", err)
	}
	return f, nil
}

// setupLogger writes text logs to stderr, and to a timestamped file in
// LogDir when set. Stdout is left to command output.
func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("patent-reminders-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler), cleanup, nil
}
