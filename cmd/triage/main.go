package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"mailtriage/backend/internal/app"
	"mailtriage/backend/internal/config"
	"mailtriage/backend/internal/logger"
)

// main 执行一次分拣运行，把运行日志打印到标准输出。
//
// 致命错误时退出码为 1。
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.DefaultRotation(cfg.Log.Level, cfg.Log.Development, cfg.Log.File))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, log)
	stop()
	log.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) int {
	components, err := app.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer components.Close()

	report, err := components.Runner.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Println(report.Transcript())
	if report.Fatal != nil {
		return 1
	}
	return 0
}
