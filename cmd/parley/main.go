package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	charmlog "github.com/charmbracelet/log"
	gokitlog "github.com/go-kit/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/postgres"
	"github.com/parleyhq/parley/postgres/migrator"
	"github.com/parleyhq/parley/realtime"
	"github.com/parleyhq/parley/service"
	"github.com/parleyhq/parley/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	errLogger := slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	}))
	infoLogger := slog.New(charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		ReportTimestamp: true,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("open postgres connection pool: %w", err)
	}

	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	migrationStart := time.Now()
	infoLogger.Info("starting postgres migrations")

	if err := migrator.Migrate(context.Background(), dbPool, postgres.MigrationsFS); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}

	infoLogger.Info("finished postgres migrations", "took", time.Since(migrationStart))

	hub := realtime.NewHub(infoLogger)

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()

		fanout, err := realtime.NewFanout(nc, errLogger)
		if err != nil {
			return fmt.Errorf("create realtime fanout: %w", err)
		}
		defer fanout.Close()

		hub.SetFanout(fanout)
		infoLogger.Info("realtime fanout enabled", "nats_url", cfg.NATSURL)
	}

	svc := service.New(&service.Config{
		Postgres:          postgres.New(dbPool),
		Broadcaster:       hub,
		BaseCtx:           context.Background(),
		BackgroundTimeout: cfg.BackgroundTimeout,
	})
	defer svc.Close()

	go func() {
		for err := range svc.Errs() {
			errLogger.Error("service error", "error", err)
		}
	}()

	hub.Commands = svc

	handler := web.New(svc, hub, gokitlog.NewLogfmtLogger(os.Stderr))
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		infoLogger.Info("starting parley server", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("start parley server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown parley server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
