package main

import (
	"context"
	"errors"
	"net/http"
	"time"
	_ "time/tzdata"

	"cashbook/internal/backend"
	"cashbook/internal/cache"
	"cashbook/internal/cli"
	"cashbook/internal/config"
	"cashbook/internal/datekey"
	apphttp "cashbook/internal/http"
	applog "cashbook/internal/log"
	"cashbook/internal/services"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp, (*config.Config).Validate)

	loc, err := datekey.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		cli.Fatal(logger, "Failed to load business timezone", err, "timezone", cfg.BusinessTimezone)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize ledger backend", err, "backend", cfg.DataBackend)
	}
	defer res.Cleanup()

	svc := services.NewLedgerService(res.Store, datekey.New(loc, nil), res.Options...)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close ledger service", applog.FieldError, err)
		}
	}()

	janitor := cache.NewJanitor(svc.CalendarCache())
	janitor.Start(cfg.CalendarCacheTTL)
	defer janitor.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RequestsPerMinute: cfg.RequestsPerMinute,
		TrustedProxies:    cfg.TrustedProxies,
		Logger:            logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting cashbook server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"timezone", loc.String(),
			"events", cfg.EventsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully")
}
