package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailtriage/backend/internal/app"
	"mailtriage/backend/internal/config"
	"mailtriage/backend/internal/logger"
	"mailtriage/backend/internal/service"
	httptransport "mailtriage/backend/internal/transport/http"
)

// main 启动 HTTP 触发服务，并按配置定时运行分拣。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.DefaultRotation(cfg.Log.Level, cfg.Log.Development, cfg.Log.File))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting mailtriage server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("operator", cfg.Google.OperatorAddr),
		zap.Duration("schedule", cfg.Triage.Schedule),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:     cfg,
		Runner:     components.Runner,
		JWTManager: components.JWT,
		Metrics:    components.Metrics,
		Alerts:     components.Alerts,
		Health:     components.Health,
		Logger:     log,
	})

	writeTimeout := 10 * time.Minute
	if cfg.Triage.RunTimeout > 0 {
		writeTimeout = cfg.Triage.RunTimeout + 30*time.Second
	}
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时运行 goroutine
	if cfg.Triage.Schedule > 0 {
		group.Go(func() error {
			ticker := time.NewTicker(cfg.Triage.Schedule)
			defer ticker.Stop()

			log.Info("starting scheduled triage", zap.Duration("interval", cfg.Triage.Schedule))

			for {
				select {
				case <-groupCtx.Done():
					log.Info("scheduled triage stopped")
					return nil
				case <-ticker.C:
					runScheduled(groupCtx, components.Runner, log)
				}
			}
		})
	}

	// 检索缓存清理 goroutine
	if components.Cache != nil {
		group.Go(func() error {
			components.Cache.Run(groupCtx, time.Minute)
			return nil
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// runScheduled 执行一次定时运行，已有运行进行中时跳过
func runScheduled(ctx context.Context, runner *service.Runner, log *zap.Logger) {
	report, err := runner.Run(ctx)
	if errors.Is(err, service.ErrRunInProgress) {
		log.Info("scheduled triage skipped, a run is already in progress")
		return
	}
	if err != nil {
		log.Error("scheduled triage failed", zap.Error(err))
		return
	}
	if report.Fatal != nil {
		log.Error("scheduled triage aborted", zap.String("run_id", report.RunID), zap.Error(report.Fatal))
		return
	}
	log.Info("scheduled triage finished",
		zap.String("run_id", report.RunID),
		zap.Int("unread", report.Stats.Unread),
		zap.Int("drafted", report.Stats.Drafted),
	)
}
