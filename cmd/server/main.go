package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	accessapp "github.com/shardbase/backend/internal/application/access"
	shardapp "github.com/shardbase/backend/internal/application/shard"
	"github.com/shardbase/backend/internal/domain/access"
	"github.com/shardbase/backend/internal/domain/shard"
	"github.com/shardbase/backend/internal/infrastructure/auth"
	"github.com/shardbase/backend/internal/infrastructure/cache"
	"github.com/shardbase/backend/internal/infrastructure/config"
	"github.com/shardbase/backend/internal/infrastructure/event"
	"github.com/shardbase/backend/internal/infrastructure/logger"
	"github.com/shardbase/backend/internal/infrastructure/persistence"
	"github.com/shardbase/backend/internal/interfaces/http/handler"
	"github.com/shardbase/backend/internal/interfaces/http/middleware"
	"github.com/shardbase/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	log.Info("starting",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	var db *persistence.Database
	if cfg.App.Env == "production" {
		db, err = persistence.NewDatabase(&cfg.Database)
	} else {
		db, err = persistence.NewDatabaseWithLogger(&cfg.Database, gormlogger.Warn)
	}
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.App.Env != "production" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("auto-migration failed", zap.Error(err))
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatal("redis connection failed", zap.Error(err))
	}
	cancelPing()

	// Caches and the cross-process invalidation bus
	shardCache := cache.NewRedisShardCache(redisClient)
	decisionCache := cache.NewRedisDecisionCache(redisClient)
	bus := cache.NewRedisInvalidationBus(redisClient,
		cache.WithBusChannel(cfg.Cache.InvalidationChannel),
		cache.WithBusLogger(log),
	)
	defer bus.Close()

	// Async event fan-out
	dispatcher := event.NewAsyncDispatcher(
		event.WithQueueSize(cfg.Event.QueueSize),
		event.WithWorkers(cfg.Event.Workers),
		event.WithDispatcherLogger(log),
	)
	if cfg.Event.WebhookEnabled {
		bridge := event.NewWebhookBridge(cfg.Event.WebhookEndpoint, "", cfg.Event.WebhookTimeout,
			event.WithWebhookRetries(cfg.Event.WebhookRetries),
			event.WithWebhookLogger(log),
		)
		dispatcher.Subscribe(bridge)
	}
	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatal("event dispatcher start failed", zap.Error(err))
	}

	// Application services
	aclService := accessapp.NewService(
		persistence.NewGormAccessBindingRepository(db.DB),
		decisionCache,
		bus,
		accessapp.WithDecisionTTL(cfg.Cache.DecisionTTL),
		accessapp.WithLogger(log),
	)
	coordinator := shardapp.NewCoordinator(
		aclService,
		persistence.NewGormShardRepository(db.DB),
		persistence.NewGormShardRevisionRepository(db.DB),
		shardCache,
		bus,
		shardapp.WithEventPublisher(dispatcher),
		shardapp.WithCacheTTL(cfg.Cache.ShardTTL),
		shardapp.WithCoordinatorLogger(log),
	)

	// Apply decision invalidations broadcast by other processes
	subCtx, cancelSub := context.WithCancel(context.Background())
	go func() {
		err := bus.SubscribeInvalidations(subCtx, access.DecisionCachePrefix, aclService.HandleInvalidation)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("decision invalidation subscription ended", zap.Error(err))
		}
	}()
	// Drop shard entries when another process invalidates them. Redis is
	// shared, so the delete is usually redundant; it covers split
	// deployments where the delete and the broadcast raced.
	go func() {
		err := bus.SubscribeInvalidations(subCtx, shard.CacheKeyPrefix, func(key string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			// A key ending in ":" is a tenant-wide wipe, e.g. shard:{tenantId}:
			if strings.HasSuffix(key, ":") {
				if err := shardCache.DeleteByPrefix(ctx, key); err != nil {
					log.Warn("shard prefix invalidation failed", zap.String("prefix", key), zap.Error(err))
				}
				return
			}
			if err := shardCache.Delete(ctx, key); err != nil {
				log.Warn("shard invalidation apply failed", zap.String("key", key), zap.Error(err))
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("shard invalidation subscription ended", zap.Error(err))
		}
	}()

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.Recovery(log),
	)
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("invalid trusted proxies", zap.Error(err))
		}
	}

	healthHandler := handler.NewHealthHandler(db)
	healthHandler.RegisterRoutes(engine)

	verifier := auth.NewJWTVerifier(cfg.JWT)
	engine.Use(middleware.Auth(verifier))

	router.NewRouter(engine).
		Register(handler.NewShardHandler(coordinator)).
		Register(handler.NewBindingHandler(aclService)).
		Setup()

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	cancelSub()
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error("event dispatcher stop failed", zap.Error(err))
	}

	log.Info("stopped")
}
