package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xmattthemii/aryes-news-feed/internal/ai"
	"github.com/0xmattthemii/aryes-news-feed/internal/classify"
	"github.com/0xmattthemii/aryes-news-feed/internal/config"
	"github.com/0xmattthemii/aryes-news-feed/internal/feed"
	"github.com/0xmattthemii/aryes-news-feed/internal/history"
	"github.com/0xmattthemii/aryes-news-feed/internal/ledger"
	"github.com/0xmattthemii/aryes-news-feed/internal/pipeline"
	"github.com/0xmattthemii/aryes-news-feed/internal/publish"
	"github.com/0xmattthemii/aryes-news-feed/internal/scheduler"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		p, closeFn := buildPipeline(cfg, slog.Default())
		defer closeFn()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = p.Run(ctx, cfg.Channels())
		return err
	},
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slog.Default()

	p, closeFn := buildPipeline(cfg, logger)
	defer closeFn()

	s, err := scheduler.New(cfg.ScheduleSpec(), func(ctx context.Context) error {
		_, err := p.Run(ctx, cfg.Channels())
		return err
	}, logger)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.ScheduleSpec(), err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("scheduler started", "schedule", cfg.ScheduleSpec(), "ledger", cfg.ResolvedLedgerPath(), "classifier", cfg.AIEnabled())
	s.Start()
	<-ctx.Done()
	logger.Info("shutting down")
	s.Stop()
	return nil
}

// buildPipeline wires the collaborators for cfg. The returned func releases
// the history database.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func()) {
	var completer ai.Completer
	if cfg.AIEnabled() {
		c, err := ai.New(cfg.AI, cfg.AIKey())
		if err != nil {
			logger.Warn("classifier disabled", "error", err)
		} else {
			completer = c
		}
	} else {
		logger.Info("no classifier credential, every new article counts as relevant")
	}

	opts := pipeline.Options{
		Fetcher:    feed.NewRSSFetcher(nil),
		Classifier: classify.New(completer, logger),
		Publisher:  publish.NewWebhook(nil, logger),
		Ledger:     ledger.NewStore(cfg.ResolvedLedgerPath(), logger),
		Logger:     logger,
		Recency:    cfg.RecencyDuration(),
		Retention:  cfg.RetentionDuration(),
		Pace:       cfg.PaceDuration(),
		DryRun:     flagDryRun,
	}

	closeFn := func() {}
	db, err := history.Open(config.HistoryPath())
	if err != nil {
		logger.Warn("history unavailable, decisions will not be recorded", "error", err)
	} else {
		opts.Recorder = db
		closeFn = func() { db.Close() }
	}

	return pipeline.New(opts), closeFn
}
