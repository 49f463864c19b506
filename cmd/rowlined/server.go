package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v3"

	"github.com/rowline/rowline/config"
	"github.com/rowline/rowline/httpapi"
	"github.com/rowline/rowline/importworker"
	rlog "github.com/rowline/rowline/log"
	"github.com/rowline/rowline/store"
	"github.com/rowline/rowline/tablereader"
)

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:   "server",
		Usage:  "run the rowline HTTP API and import worker pool",
		Action: runServer,
		Description: `
	Environment variables:
		ROWLINE_DB_PATH                (default: rowline.db)
		ROWLINE_LISTEN_ADDR            (default: 0.0.0.0:8080)
		ROWLINE_UPLOAD_DIR             (default: /tmp/rowline-uploads)
		ROWLINE_MAX_UPLOAD_SIZE        (default: 1073741824)
		ROWLINE_DEFAULT_BRANCH         (default: main)
		ROWLINE_IMPORT_BATCH_SIZE      (default: 5000)
		ROWLINE_IMPORT_HASH_WORKERS    (default: 8)
		ROWLINE_WORKER_COUNT           (default: 4)
		ROWLINE_WORKER_POLL_INTERVAL   (default: 2s)
	`,
	}
}

func runServer(ctx context.Context, cmd *cli.Command) error {
	logger := rlog.FromContext(ctx)
	logger = rlog.SubLogger(logger, cmd.Name)
	ctx = rlog.IntoContext(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := store.Make(cfg.Core.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	reader, err := tablereader.New(db)
	if err != nil {
		return fmt.Errorf("failed to set up table reader: %w", err)
	}

	api := httpapi.New(cfg, db, reader)

	pool := importworker.New(db, importworker.Config{
		WorkerCount:  cfg.Worker.Count,
		PollInterval: cfg.Worker.PollInterval,
		MaxRetries:   cfg.Worker.MaxRetries,
		RetryDelay:   cfg.Worker.RetryInitialDelay,
		BatchSize:    cfg.Import.BatchSize,
		HashWorkers:  cfg.Import.HashWorkers,
		DefaultRef:   cfg.Core.DefaultBranch,
	})
	pool.SetNotifier(api.Bus())

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start import worker pool: %w", err)
	}
	defer pool.Stop()

	logger.Info("starting server", "address", cfg.Core.ListenAddr)
	return http.ListenAndServe(cfg.Core.ListenAddr, api.Router())
}
