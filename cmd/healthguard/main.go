package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/assignment"
	"github.com/MrMsnawi/healthguard-ops/internal/config"
	"github.com/MrMsnawi/healthguard-ops/internal/consumer"
	"github.com/MrMsnawi/healthguard-ops/internal/httpapi"
	"github.com/MrMsnawi/healthguard-ops/internal/metrics"
	"github.com/MrMsnawi/healthguard-ops/internal/notify"
	"github.com/MrMsnawi/healthguard-ops/internal/oncall"
	"github.com/MrMsnawi/healthguard-ops/internal/repository"
	"github.com/MrMsnawi/healthguard-ops/internal/service"
	"github.com/MrMsnawi/healthguard-ops/pkg/database"
	"github.com/MrMsnawi/healthguard-ops/pkg/logger"
	"github.com/MrMsnawi/healthguard-ops/pkg/streams"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "incident-service")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// 4. Redis（报警消费 + 通知发布共用一个连接）
	redisClient := streams.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()

	// 5. 组装依赖
	repo := repository.NewIncidentsRepository(db, log)
	oncallClient := oncall.NewClient(cfg.OnCall.BaseURL,
		time.Duration(cfg.OnCall.TimeoutSeconds)*time.Second, log)
	publisher := notify.NewPublisher(redisClient, cfg.Notification.Stream, log)
	markRead := notify.NewMarkReadClient(cfg.Notification.BaseURL,
		time.Duration(cfg.Notification.TimeoutSeconds)*time.Second, log)
	engine := assignment.NewEngine(oncallClient, repo, log)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	incidentService := service.NewIncidentService(repo, engine, publisher, markRead, m, log)

	// 6. HTTP 路由
	router := httpapi.NewRouter(log)
	router.RegisterIncidentRoutes(httpapi.NewIncidentHandler(incidentService, log))
	router.HandleHandler("/metrics", metrics.Handler(registry))
	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	// 7. 报警消费者
	alertConsumer := consumer.NewAlertConsumer(redisClient, incidentService, consumer.Options{
		Stream:        cfg.Consumer.Stream,
		Group:         cfg.Consumer.Group,
		Consumer:      cfg.Consumer.Name,
		Block:         time.Duration(cfg.Consumer.BlockSeconds) * time.Second,
		RetryAttempts: cfg.Consumer.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Consumer.RetryDelay) * time.Second,
		RestartDelay:  time.Duration(cfg.Consumer.RestartDelay) * time.Second,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Start()
	}()
	go func() {
		errCh <- alertConsumer.Run(ctx)
	}()

	// 8. 等待信号（优雅关闭）
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error("Component stopped with error", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)

	log.Info("Incident service stopped")
}
