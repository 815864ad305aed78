package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chesschain/queue-api/internal/chain"
	"github.com/chesschain/queue-api/internal/config"
	"github.com/chesschain/queue-api/internal/dispatcher"
	"github.com/chesschain/queue-api/internal/events"
	"github.com/chesschain/queue-api/internal/handlers"
	"github.com/chesschain/queue-api/internal/intake"
	"github.com/chesschain/queue-api/internal/rewards"
	"github.com/chesschain/queue-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	pg, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		sugar.Fatalw("Failed to create Postgres pool", "error", err)
	}
	defer pg.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		sugar.Fatalw("Invalid Redis URL", "error", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Chain
	sponsor, err := chain.LoadSponsor(cfg.SponsorSecret)
	if err != nil {
		sugar.Fatalw("Failed to load sponsor key", "error", err)
	}
	if cfg.SponsorAddress != "" && !strings.EqualFold(cfg.SponsorAddress, sponsor.Address) {
		sugar.Fatalw("Sponsor address mismatch",
			"configured", cfg.SponsorAddress,
			"derived", sponsor.Address,
		)
	}
	sugar.Infow("Sponsor loaded", "address", sponsor.Address, "network", cfg.SuiNetwork)

	rpcClient, err := chain.Dial(ctx, cfg.SuiRPCURL)
	if err != nil {
		sugar.Fatalw("Failed to dial fullnode", "url", cfg.SuiRPCURL, "error", err)
	}
	defer rpcClient.Close()

	gateway := chain.NewGateway(rpcClient, sponsor, chain.Config{
		PackageID:  cfg.PackageID,
		RegistryID: cfg.RegistryID,
		GasBudget:  cfg.GasBudget,
	}, sugar)

	// Services
	st := store.New(pg, sugar)
	bus := events.NewRedisBus(redisClient, sugar)
	engine := rewards.NewEngine(st, sugar)
	intakeSvc := intake.New(st, engine, bus, sugar)

	disp := dispatcher.New(st, gateway, bus, dispatcher.Config{
		Interval:   cfg.ProcessingInterval,
		RetryDelay: cfg.RetryDelay,
		MaxRetries: cfg.MaxRetries,
		GCInterval: cfg.GCInterval,
	}, sugar)
	disp.Start(ctx)

	h := handlers.New(handlers.Config{
		Intake:   intakeSvc,
		Queue:    st,
		Postgres: pg,
		Redis:    redisClient,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: h.Router(cfg.AllowedOrigins),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("HTTP server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sugar.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("HTTP shutdown error", "error", err)
		}

		// Workers finish their current intent attempt before the pools close.
		disp.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("Server error", "error", err)
	}
	sugar.Info("Shutdown complete")
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}
