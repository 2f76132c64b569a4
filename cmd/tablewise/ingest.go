package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tablewise/internal/analytics"
	"tablewise/internal/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Load order batch files into the analytics store",
	Long: `Parses JSON order batch files and loads them into the analytics
database. Orders already present (matched by external id) are skipped, so
re-running an ingest is safe.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return ingestFiles(cfg, args)
}

func ingestFiles(cfg *config.Config, paths []string) error {
	store, err := analytics.NewStore(cfg.Store.AnalyticsPath, logger)
	if err != nil {
		return fmt.Errorf("analytics store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	inserted, err := store.IngestFiles(ctx, paths)
	if err != nil {
		return err
	}

	logger.Info("ingest complete",
		zap.Int("files", len(paths)),
		zap.Int("orders_inserted", inserted))
	fmt.Printf("ingested %d new orders from %d file(s)\n", inserted, len(paths))
	return nil
}
