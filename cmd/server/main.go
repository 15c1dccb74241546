package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/voltgazer/internal/api/handlers"
	"github.com/langchou/voltgazer/internal/config"
	"github.com/langchou/voltgazer/internal/metrics"
	"github.com/langchou/voltgazer/internal/models"
	"github.com/langchou/voltgazer/internal/repository"
	"github.com/langchou/voltgazer/internal/service"
	"github.com/langchou/voltgazer/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Voltgazer",
		zap.String("port", cfg.ServerPort),
		zap.String("db_host", cfg.DBHost),
		zap.String("db_name", cfg.DBName))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 创建连接池，此时不要求数据库可达
	db, err := repository.New(ctx, cfg.DatabaseURL(), logger)
	if err != nil {
		logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer db.Close()

	// 建表，重试耗尽后以降级模式继续启动
	db.Bootstrap(ctx, repository.DefaultBootstrapPolicy())

	// 创建 Repository
	readingRepo := repository.NewReadingRepository(db)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	// 创建服务
	ingestService := service.NewIngestionService(logger, readingRepo, wsHub)
	queryService := service.NewQueryService(logger, readingRepo)

	// 新连接先推送最近的读数
	wsHub.SetInitDataProvider(func(ctx context.Context) (*models.ReadingPage, error) {
		return queryService.List(ctx, nil, nil)
	})

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, ingestService, queryService, db, wsHub)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestID())
	router.Use(handlers.RequestLogger(logger))
	router.Use(metrics.Middleware())
	router.Use(handlers.CORS())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", server.Addr),
		zap.String("storage", db.State().State))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 断开 WebSocket 客户端
	cancel()

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}
