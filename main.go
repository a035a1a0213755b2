package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canteen-menu-service/internal/cache"
	"canteen-menu-service/internal/config"
	"canteen-menu-service/internal/db"
	httpapi "canteen-menu-service/internal/http"
	"canteen-menu-service/internal/http/handlers"
	"canteen-menu-service/internal/logger"
	"canteen-menu-service/internal/middleware"
	"canteen-menu-service/internal/queue"
	"canteen-menu-service/internal/seed"
	"canteen-menu-service/internal/services"
	"canteen-menu-service/internal/storage"
	"canteen-menu-service/internal/store"
	"canteen-menu-service/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.JWTSecret == "" {
		if !cfg.Development() {
			log.Fatal("JWT_SECRET not set")
		}
		cfg.JWTSecret = "development-secret"
		log.Warn("JWT_SECRET not set; using a development secret")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	if cfg.DatabaseURL == "" && cfg.Development() {
		log.Warn("DATABASE_URL is empty; using in-memory store")
		st = store.NewMemory()
	} else {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
	}

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			log.Fatal("seed file invalid", zap.String("path", cfg.SeedFile), zap.Error(err))
		}
		result, err := seed.Apply(ctx, st, f, log)
		if err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
		log.Info("seed applied", zap.Int("created", result.Created), zap.Int("reused", result.Reused))
	}

	opts := []services.Option{}

	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err == nil {
			if topoErr := queue.EnsureTopology(ctx, qc); topoErr != nil {
				_ = qc.Close()
				qc, err = nil, topoErr
			}
		}
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq setup failed", zap.Error(err))
			}
			log.Warn("rabbitmq setup failed; writing audit inline", zap.Error(err))
		}

		if qc != nil {
			defer qc.Close()
			log.Info("rabbitmq enabled", zap.String("exchange", queue.EventsExchange))
			opts = append(opts, services.WithPublisher(qc))

			if cfg.RabbitMQWorkerMode == "daemon" {
				log.Info("audit worker enabled", zap.String("queue", queue.SelectionAuditQueue))
				go func() {
					err := qc.ConsumeWithRetry(ctx, queue.SelectionAuditQueue, queue.AuditHandler(st), 5, 5*time.Second, log)
					if err != nil && ctx.Err() == nil {
						log.Error("audit consumer stopped", zap.Error(err))
					}
				}()
			} else {
				log.Info("audit worker disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
			}
		}
	} else {
		log.Info("rabbitmq disabled (RABBITMQ_URL is empty); writing audit inline")
	}

	if cfg.RedisURL != "" {
		overviewCache, err := cache.NewOverview(cfg.RedisURL, cfg.OverviewCacheTTL)
		if err != nil {
			log.Warn("redis unavailable; overview cache disabled", zap.Error(err))
		} else {
			defer overviewCache.Close()
			opts = append(opts, services.WithOverviewCache(overviewCache))
		}
	}

	objectCfg := storage.Config{
		Endpoint:        cfg.ObjectStoreEndpoint,
		Region:          cfg.ObjectStoreRegion,
		AccessKeyID:     cfg.ObjectStoreAccessKeyID,
		SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
		Bucket:          cfg.ObjectStoreBucket,
		PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
		StorageClass:    cfg.ObjectStoreStorageClass,
	}
	if objectCfg.Enabled() {
		objects, err := storage.NewObjectStore(ctx, objectCfg)
		if err != nil {
			log.Warn("object store unavailable; publishing disabled", zap.Error(err))
		} else {
			opts = append(opts, services.WithObjectStore(objects))
		}
	}

	wsServer := ws.New(st, log, cfg.JWTSecret, cfg.WSHeartbeatInterval)
	opts = append(opts, services.WithNotifier(wsServer))

	h := &handlers.Handler{
		Store:  st,
		Menus:  services.NewMenus(st, log, opts...),
		Logger: log,
		Config: cfg,
	}
	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(h, log, cfg, middleware.NewTelemetry(log), wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("menu service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
