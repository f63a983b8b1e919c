package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kickspot/internal/config"
	"kickspot/internal/handler"
	"kickspot/internal/httpserver"
	"kickspot/internal/mqhandler"
	"kickspot/internal/realtime"
	"kickspot/internal/service"
	"kickspot/pkg/circuitbreaker"
	"kickspot/pkg/logger"
	"kickspot/pkg/mq"
	"kickspot/pkg/outbox"
	pkgredis "kickspot/pkg/redis"
	"kickspot/pkg/util"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, real-time transports and event consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(opts.ConfigDir)
	if err != nil {
		return err
	}

	log := logger.NewLogger(opts.Debug)
	defer log.Sync()
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting notification-service...",
		zap.String("db_driver", cfg.DB.Driver),
		zap.Bool("consumer", cfg.Consumer.Enabled),
		zap.Bool("outbox", cfg.Outbox.Enabled),
		zap.Bool("relay", cfg.Realtime.Relay.Enabled),
	)

	// Storage
	storage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer storage.Close()

	// Redis
	var rdb *redis.Client
	if cfg.Consumer.Enabled || cfg.Realtime.Relay.Enabled {
		rdb, err = pkgredis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))
	}

	// Realtime
	registry := realtime.NewRegistry(log)
	broker := realtime.NewBroker(registry, log)
	var publisher realtime.Publisher = broker
	if cfg.Realtime.Relay.Enabled {
		cbCfg := circuitbreaker.DefaultConfig()
		cbCfg.OnStateChange = func(from, to circuitbreaker.State) {
			log.Warn("Relay circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
		relay := realtime.NewRedisRelay(rdb, broker, circuitbreaker.NewCircuitBreaker(cbCfg), cfg.Realtime.Relay.Prefix, log)
		publisher = relay
		go func() {
			_ = relay.Run(ctx)
			log.Info("Relay subscriber stopped")
		}()
	}

	// Services
	emitter := service.NewEmitter(storage.store, publisher, log)
	events := service.NewDomainEvents(emitter, storage.store, log)
	notifications := service.NewNotificationService(storage.store, emitter, log)

	// Domain event routing, shared by the MQ consumer and the HTTP injection endpoint
	var dedup mqhandler.Deduper
	if rdb != nil {
		dedup = util.NewDeduper(rdb, time.Duration(cfg.Consumer.DedupTTL)*time.Second, log)
	}
	mqRouter := mq.NewRouter(log)
	mqhandler.NewStorefrontHandler(events, dedup, log).Register(mqRouter)

	var consumer *mq.Consumer
	if cfg.Consumer.Enabled {
		consumer, err = mq.NewConsumer(cfg.MQ.URL, cfg.Consumer.Queue, mqRouter.RoutingKeys(), log)
		if err != nil {
			return err
		}
		defer consumer.Close()
		consumer.SetHandler(mqRouter.Handle)

		go func() {
			log.Info("Starting domain event consumer...")
			if err := consumer.StartConsuming(); err != nil {
				log.Error("Domain event consumer failed", zap.Error(err))
			}
		}()
	}

	// Outbox
	var adminHandler *handler.AdminHandler
	var mqHealth interface{ IsConnected() bool }
	if cfg.Outbox.Enabled {
		mqPublisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			return err
		}
		defer mqPublisher.Close()

		dispatcher := outbox.NewDispatcher(storage.outbox, mqPublisher, log).
			WithInterval(time.Duration(cfg.Outbox.IntervalSeconds) * time.Second).
			WithBatchSize(cfg.Outbox.BatchSize).
			WithMaxRetries(cfg.Outbox.MaxRetries)
		go dispatcher.Start(ctx)
		mqHealth = mqPublisher

		adminHandler = handler.NewAdminHandler(outbox.NewReplayService(storage.outbox, mqPublisher, log), log)
	}

	// HTTP Server
	router := httpserver.NewRouter(httpserver.Deps{
		Notifications:  handler.NewNotificationHandler(notifications, log),
		Streams:        handler.NewStreamHandler(registry, cfg.Realtime, log),
		Events:         handler.NewEventHandler(mqRouter, log),
		Admin:          adminHandler,
		Store:          storage.store,
		MQ:             mqHealth,
		JWTSecret:      cfg.JWT.Secret,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		Logger:         log,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	log.Info("notification-service is fully initialized and running")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error("HTTP server failed", zap.Error(err))
		return err
	}

	log.Info("Shutting down notification-service gracefully...")

	if consumer != nil {
		consumer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// hijacked websockets are not tracked by Shutdown; closing the registry's
	// members ends their handlers
	for _, conn := range registry.Snapshot() {
		_ = conn.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("notification-service shutdown complete")
	return nil
}
