package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pulse-carescore/internal/config"
	"pulse-carescore/internal/consumer"
	"pulse-carescore/internal/database"
	httpapi "pulse-carescore/internal/http"
	"pulse-carescore/internal/logger"
	"pulse-carescore/internal/mqtt"
	rediscommon "pulse-carescore/internal/redis"
	"pulse-carescore/internal/repository"
	"pulse-carescore/internal/service"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "pulse-carescore")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// 4. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	defer rediscommon.Close(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// 5. 创建仓库
	healthRepo := repository.NewHealthDataRepository(db, log)
	baselineRepo := repository.NewBaselineRepository(db, log)
	scoreRepo := repository.NewCareScoreRepository(db, log)
	escRepo := repository.NewEscalationRepository(db, log)

	// 6. 创建缓存与状态管理器
	cache := consumer.NewCacheManager(cfg, redisClient, log)
	states := consumer.NewStateManager(cfg, redisClient, log)

	// 7. 创建服务
	insights := service.NewInsightsClient(cfg.Care.Insights.BaseURL, cfg.Care.Insights.Timeout, log)
	careService := service.NewCareScoreService(
		db, cfg, healthRepo, baselineRepo, scoreRepo, escRepo,
		cache, states, insights, log,
	)
	escalationService := service.NewEscalationService(escRepo, log)

	errChan := make(chan error, 3)

	// 8. 启动 Streams 消费者（读数接入）
	streamConsumer := consumer.NewStreamConsumer(cfg, redisClient, healthRepo, cache, log)
	go func() {
		if err := streamConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("stream consumer: %w", err)
		}
	}()

	// 9. 启动 MQTT 桥接（可选，只在配置了 Broker 时启用）
	if cfg.MQTT.Broker != "" {
		mqttClient, err := mqtt.NewClient(&cfg.MQTT)
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer mqttClient.Disconnect()

		mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, log)
		go func() {
			if err := mqttConsumer.Start(ctx); err != nil {
				errChan <- fmt.Errorf("mqtt consumer: %w", err)
			}
		}()
	}

	// 10. 启动评估轮询循环
	go func() {
		if err := careService.RunPollLoop(ctx); err != nil {
			errChan <- fmt.Errorf("poll loop: %w", err)
		}
	}()

	// 11. 启动 HTTP 服务
	router := httpapi.NewRouter(log)
	router.RegisterCareRoutes(httpapi.NewCareScoreHandler(careService, insights, log))
	router.RegisterEscalationRoutes(httpapi.NewEscalationHandler(escalationService, log))
	router.RegisterReadingRoutes(httpapi.NewReadingsHandler(cfg, redisClient, healthRepo, log))
	router.RegisterExportRoutes(httpapi.NewExportHandler(careService, log))
	router.RegisterHealthRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("HTTP server started", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 12. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case err := <-errChan:
		log.Error("Service error, shutting down", zap.Error(err))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("CareScore service stopped")
}
