package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"growth-chat/internal/adapters/remote"
	"growth-chat/internal/chat"
	"growth-chat/internal/chat/dispatch"
	"growth-chat/internal/common/config"
	"growth-chat/internal/common/database"
	"growth-chat/internal/common/logger"
	"growth-chat/internal/common/observability"
	"growth-chat/internal/models"
	"growth-chat/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "json")
		fallback.Fatal("failed to load configuration", zap.Error(err))
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger)

	log.Info("starting chat service", map[string]interface{}{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var degradeQueue *dispatch.DegradeQueue
	if cfg.Redis.Address != "" {
		redisClient, err := database.NewRedis(cfg.Redis)
		if err != nil {
			log.Error("failed to create redis client", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		defer redisClient.Close()
		if err := redisClient.Ping(ctx); err != nil {
			log.Warn("redis unreachable at startup, degrade queue may fail", map[string]interface{}{"error": err.Error()})
		}
		degradeQueue = dispatch.NewDegradeQueue(redisClient, log)
	}

	registry := dispatch.NewRegistry()
	for name, entityCfg := range cfg.Entities {
		entityType := models.ParseEntityType(name)
		if entityType == "" {
			log.Warn("skipping unknown entity type in config", map[string]interface{}{"name": name})
			continue
		}
		if entityCfg.Endpoint == "" {
			log.Warn("entity has no endpoint configured", map[string]interface{}{"entityType": entityType})
			continue
		}
		adapter := remote.New(entityCfg.Endpoint, config.GetDuration(entityCfg.TimeoutMs), log)
		registry.Register(entityType, adapter)
		log.Info("registered entity adapter", map[string]interface{}{
			"entityType": entityType,
			"endpoint":   entityCfg.Endpoint,
			"strategy":   entityCfg.FallbackStrategy,
		})
	}

	service, err := chat.NewService(cfg, registry, log, chat.Options{
		Observability: obs,
		DegradeQueue:  degradeQueue,
		EscalationHook: func(userID string, failures int) {
			log.Warn("user needs attention after repeated failures", map[string]interface{}{
				"userId":   userID,
				"failures": failures,
			})
		},
	})
	if err != nil {
		log.Error("failed to build chat service", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	service.Start(ctx)

	srv := server.New(cfg.Server, service, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err := <-errCh:
		log.Error("http server failed", map[string]interface{}{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	service.Cleanup()
	log.Info("chat service stopped", nil)
}
