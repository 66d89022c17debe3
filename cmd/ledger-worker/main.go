package main

import (
	"context"
	"errors"

	"cashbook/internal/amqp"
	"cashbook/internal/cli"
	"cashbook/internal/config"
	applog "cashbook/internal/log"
	"cashbook/internal/sheets"
	gsheet "cashbook/internal/sheets/google"
	mem "cashbook/internal/sheets/memory"
	"cashbook/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentMirror, (*config.Config).ValidateMirror)
	logger.Info("Starting ledger-worker", "backend", cfg.MirrorBackend)

	ctx, stop := cli.SignalContext()
	defer stop()

	var book sheets.Workbook
	switch cfg.MirrorBackend {
	case "memory":
		book = mem.New()
		logger.Info("Mirroring into memory workbook")
	default:
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, gsheet.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		book = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	mirror := worker.NewMirrorWorker(book, cfg.GoogleExpensesSheetName, cfg.GoogleCashSheetName, cfg.MirrorBatchSize)
	if err := mirror.Warmup(ctx); err != nil {
		cli.Fatal(logger, "Failed to load mirrored rows", err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.Consume(gctx, mirror.Handle)
	})
	g.Go(func() error {
		return mirror.Run(gctx, cfg.MirrorInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Mirror worker stopped", err)
	}
	logger.Info("Worker stopped gracefully", "pending_rows", mirror.Pending())
}
