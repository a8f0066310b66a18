package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/actuator"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/app"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/config"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/database"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/dispatch"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/ingress"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/logging"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/redis"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/resolver"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/server"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/session"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/streak"
)

// drainGrace bounds how long shutdown waits for the durable log to flush.
const drainGrace = 5 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRules(cfg *config.Config) *domain.RuleSet {
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		slog.Error("Failed to load action rules", "path", cfg.RulesPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Action rules loaded",
		"gift_rules", len(rules.GiftRules),
		"keyword_rules", len(rules.KeywordRules),
		"like_rules", len(rules.LikeRules),
	)
	return rules
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to ping Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupTransport(cfg *config.Config) *actuator.LineTransport {
	transport, err := actuator.OpenSerial(cfg.SerialPort, cfg.SerialBaud)
	if err != nil {
		slog.Error("Failed to open serial port", "port", cfg.SerialPort, "error", err)
		os.Exit(1)
	}
	slog.Info("Serial port opened", "port", cfg.SerialPort, "baud", cfg.SerialBaud)
	return transport
}

// resetterFunc adapts a plain function to the session.Resetter interface.
type resetterFunc func()

func (f resetterFunc) ResetSession() { f() }

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	rules := setupRules(cfg)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	transport := setupTransport(cfg)

	// Storage collaborators
	continuity := redis.NewContinuityStore(redisClient.Underlying())
	archive := database.NewSessionRepo(pool)
	eventLog := database.NewEventLogRepo(pool)

	// Pipeline stages
	live := dispatch.NewLiveState()
	batcher := dispatch.NewBatcher(eventLog, clock, cfg.BatchSize, cfg.BatchInterval)
	dispatcher := dispatch.NewDispatcher(cfg.ActuatorQueueSize, live, batcher)
	res := resolver.New(rules, clock)
	streaks := streak.NewAggregator(clock, streak.DefaultStaleness)

	sessions := session.NewManager(cfg.AccountID, continuity, archive, clock, cfg.ContinuationTimeout,
		app.NewStreakDrain(streaks, dispatcher),
		res,
		resetterFunc(live.Reset),
	)

	normalizer := ingress.NewNormalizer(sessions, clock)
	client := ingress.NewClient(cfg.UpstreamURL, sessions, clock)
	pipeline := app.NewPipeline(client.Events(), normalizer, streaks, res, dispatcher, clock)
	engine := actuator.NewEngine(transport, dispatcher.Commands(), live, cfg.ActuatorPins, clock)

	srv := server.NewServer(cfg, live, sessions, engine, transport, redisClient.Underlying(), pool, clock)

	ctx, cancel := context.WithCancel(context.Background())
	go client.Run(ctx)
	go pipeline.Run(ctx)
	go batcher.Run(ctx)
	go engine.Run(ctx)

	done := runGracefulShutdown(srv, cancel, batcher, transport)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

func runGracefulShutdown(srv *server.Server, cancel context.CancelFunc, batcher *dispatch.Batcher, transport *actuator.LineTransport) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Stop the pipeline, then give the durable log a short grace period
		// to flush what it has buffered.
		cancel()
		select {
		case <-batcher.Done():
		case <-time.After(drainGrace):
			slog.Warn("Durable log drain exceeded grace period, discarding remainder")
		}

		if err := transport.Close(); err != nil {
			slog.Error("Serial close error", "error", err)
		}

		close(done)
	}()

	return done
}
