// cmd/main.go is the application entry point.
// It wires together all layers and starts the webhook server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/admin"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/allocator"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/broadcast"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/config"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/content"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/counters"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/database"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/handler"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/intake"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/logger"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/notify"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/registry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/repository"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/retry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/service"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/syncer"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport/telegram"
)

const drainTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "gathering-bot")
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := retry.Policy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay}

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, policy, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

	counterStore, closeCounters, err := newCounterStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCounters()

	adminIDs, err := cfg.AdminIDs()
	if err != nil {
		return err
	}
	texts, err := content.Load(cfg.ContentFile)
	if err != nil {
		return err
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	bot := telegram.NewClient(cfg.APIURL, cfg.BotToken, log.Named("telegram"))
	channel := notify.NewChannel(bot, transport.ChatID(cfg.ChannelID), policy, log.Named("notify"))

	reg := registry.New(log.Named("registry"))
	sync := syncer.New(reg, repository.NewStore(pool), counterStore, channel, policy, log.Named("syncer"))
	if err := sync.Load(ctx); err != nil {
		log.Error("initial load incomplete, starting with partial state", zap.Error(err))
	}

	fanout := broadcast.New(bot, channel, policy, cfg.BroadcastPacing, log.Named("broadcast"))
	session := admin.New(admin.Config{
		Password:   cfg.AdminPassword,
		AllowedIDs: adminIDs,
		Keyboard:   service.ParticipantKeyboard(reg),
	}, reg, sync, fanout, channel, log.Named("admin"))
	svc := service.NewBotService(service.Deps{
		Bot:       bot,
		Registry:  reg,
		Intake:    intake.NewEngine(reg, sync, channel, channel, log.Named("intake")),
		Allocator: allocator.New(reg, sync, log.Named("allocator")),
		Admin:     session,
		Sync:      sync,
		Operator:  channel,
		Content:   texts,
		Organizer: cfg.OrganizerContact,
		Policy:    policy,
		Logger:    log.Named("service"),
	})

	// Updates and the sync worker outlive the signal: in-flight updates
	// drain after the server stops, then the worker does its final flush.
	dispatchCtx, cancelDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDispatch()
	syncCtx, stopSync := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSync()

	webhook := handler.NewWebhookHandler(dispatchCtx, svc, cfg.WebhookSecret, cfg.WebhookWorkers, log.Named("webhook"))

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger(log.Named("http")))
	r.Use(handler.CORS)

	r.Get("/health", handler.HealthCheck)
	r.Post("/telegram/webhook", webhook.Webhook)

	// ── 4. Start server and sync worker with graceful shutdown ────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sync.Run(syncCtx)
	})
	g.Go(func() error {
		log.Info("server listening", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		defer stopSync()
		err := srv.Shutdown(shutdownCtx)
		drainUpdates(webhook, cancelDispatch, drainTimeout, log)
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// drainUpdates waits for accepted updates to finish. After timeout their
// context is cancelled and the wait continues until they return.
func drainUpdates(webhook *handler.WebhookHandler, cancel context.CancelFunc, timeout time.Duration, log *zap.Logger) {
	done := make(chan struct{})
	go func() {
		webhook.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("updates still running, cancelling", zap.Duration("waited", timeout))
		cancel()
		<-done
	}
}

// newCounterStore opens the configured counters backend. The returned
// func releases it.
func newCounterStore(ctx context.Context, cfg config.Config, log *zap.Logger) (syncer.CounterStore, func(), error) {
	if cfg.CountersBackend != config.BackendRedis {
		log.Info("counters in file", zap.String("path", cfg.CountersFile))
		return counters.NewFileStore(cfg.CountersFile), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("counters in redis", zap.String("addr", cfg.RedisAddr))
	return counters.NewRedisStore(rdb, "gathering:"), func() { _ = rdb.Close() }, nil
}
