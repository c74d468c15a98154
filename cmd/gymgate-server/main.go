package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gymgate/server/internal/config"
	"github.com/gymgate/server/internal/db"
	"github.com/gymgate/server/internal/grpcapi"
	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/clock"
	"github.com/gymgate/server/internal/gymgate/service"
	"github.com/gymgate/server/internal/gymgate/store/fixture"
	"github.com/gymgate/server/internal/gymgate/store/memory"
	sqlitestore "github.com/gymgate/server/internal/gymgate/store/sqlite"
	"github.com/gymgate/server/internal/httpapi"
	"github.com/gymgate/server/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gymgate-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{Mode: cfg.Env, Redact: cfg.LogRedaction, HashSalt: cfg.LogHashSalt})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem(cfg.Location)

	// Stores
	backend, ping, closeStore, err := openBackend(ctx, cfg, clk, log)
	if err != nil {
		return err
	}
	defer closeStore()

	router := fixture.NewRouter(backend, clk, fixture.Options{
		AdminKey: cfg.AdminKey,
		Demo:     cfg.Demo,
	})
	if cfg.AdminKey != "" || cfg.Demo {
		log.Warn("fixture members enabled", "admin_key", cfg.AdminKey, "demo", cfg.Demo)
	}

	// Services
	engine := access.NewEngine(access.Config{
		MinTimeBetweenAccesses: cfg.MinTimeBetweenAccesses,
		Location:               cfg.Location,
	})
	accessSvc := service.NewAccessService(service.NewMemberDirectory(router), engine, router, service.Options{
		StorageTimeout: cfg.StorageTimeout,
		Clock:          clk,
		Logger:         log.With("component", "access"),
	})

	resets, err := service.NewWeeklyResetScheduler(router, clk, service.WeeklyResetConfig{
		Schedule: cfg.WeeklyResetSchedule,
	}, log.With("component", "weekly_reset"))
	if err != nil {
		return err
	}
	resets.Start()
	defer resets.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:        log.With("component", "http"),
		Addr:          cfg.HTTPAddr,
		AccessService: accessSvc,
		ScanLimit:     httpapi.RateLimit{PerSecond: cfg.ScanRatePerSec, Burst: cfg.ScanRateBurst},
		Ping:          ping,
	})

	var health *grpcapi.Server
	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		health = grpcapi.NewServer(grpcapi.Config{Ping: ping}, log.With("component", "grpc"))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.Store, "timezone", cfg.TimeZone)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if health != nil {
		g.Go(func() error {
			log.Info("grpc health listening", "addr", cfg.GRPCAddr)
			return health.Serve(grpcLis)
		})
		g.Go(func() error {
			health.Watch(gctx)
			health.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shut down")
	return nil
}

// openBackend returns the primary store, its health ping and a close func.
func openBackend(ctx context.Context, cfg config.Config, clk clock.Clock, log *logger.Logger) (fixture.Backend, func(context.Context) error, func(), error) {
	if cfg.Store == "memory" {
		log.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil, func() {}, nil
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open db: %w", err)
	}
	if v, err := db.SchemaVersion(ctx, conn); err == nil {
		log.Info("database ready", "path", cfg.DBPath, "schema_version", v)
	}

	if cfg.Env == "dev" && cfg.DevSeedIdentifier != "" {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{
			Identifier: cfg.DevSeedIdentifier,
			Location:   cfg.Location,
			Now:        clk.Now(),
		}); err != nil {
			_ = conn.Close()
			return nil, nil, nil, fmt.Errorf("seed dev: %w", err)
		}
		log.Info("dev member seeded", "identifier", cfg.DevSeedIdentifier)
	}

	writer := db.NewWriter(conn)
	closeFn := func() {
		writer.Close()
		_ = conn.Close()
	}
	return sqlitestore.New(conn, writer, cfg.Location), conn.PingContext, closeFn, nil
}
