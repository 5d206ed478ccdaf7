package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mailtriage/backend/internal/auth"
	jwtpkg "mailtriage/backend/internal/auth/jwt"
	"mailtriage/backend/internal/cache"
	"mailtriage/backend/internal/config"
	"mailtriage/backend/internal/drive"
	"mailtriage/backend/internal/health"
	"mailtriage/backend/internal/llm"
	"mailtriage/backend/internal/monitoring"
	"mailtriage/backend/internal/security"
	"mailtriage/backend/internal/service"
	"mailtriage/backend/internal/storage"
	"mailtriage/backend/internal/storage/memory"
	redisstore "mailtriage/backend/internal/storage/redis"
)

// 检索缓存最多保留的查询数
const searchCacheSize = 256

// App 一个进程内共享的组件
type App struct {
	Config  *config.Config
	Store   storage.Store
	Metrics *monitoring.Metrics
	Alerts  *monitoring.AlertManager
	Health  *health.HealthChecker
	Cache   *cache.LocalCache // 未启用检索缓存时为 nil
	JWT     *jwtpkg.Manager   // 未配置触发密钥时为 nil
	Runner  *service.Runner
}

// New 按配置组装所有组件
//
// 参数:
//   - ctx: 上下文，用于引导刷新令牌
//   - cfg: 系统配置
//   - log: 日志记录器
//
// 返回值:
//   - *App: 组装好的组件
//   - error: 存储连接或提示词加载失败时返回错误
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	prompts, err := service.LoadPrompts(cfg.Triage.PromptsDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	metrics := monitoring.NewMetrics()

	alerts := monitoring.NewAlertManager(log)
	alerts.AddReceiver(monitoring.NewLogAlertReceiver(log))
	if cfg.Monitor.AlertWebhook != "" {
		alerts.AddReceiver(monitoring.NewWebhookAlertReceiver(cfg.Monitor.AlertWebhook, log))
	}

	var searchCache *cache.LocalCache
	if cfg.Drive.CacheTTL > 0 {
		searchCache = cache.NewLocalCache(searchCacheSize, cfg.Drive.CacheTTL)
	}

	var contentFilter *security.ContentFilter
	if cfg.Triage.ContentFilter {
		contentFilter = security.NewContentFilter()
	}

	gemini := llm.NewClient(llm.Options{
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		BaseURL:         cfg.Gemini.BaseURL,
		Timeout:         cfg.Gemini.Timeout,
		RatePerMinute:   cfg.Gemini.RatePerMinute,
		Burst:           cfg.Gemini.Burst,
		BreakerFailures: cfg.Gemini.BreakerFailures,
		BreakerTimeout:  cfg.Gemini.BreakerTimeout,
		Logger:          log,
	})

	triage := service.NewTriageService(gemini, prompts, service.Options{
		OperatorAddr:  cfg.Google.OperatorAddr,
		OperatorName:  cfg.Google.OperatorName,
		MaxMessages:   cfg.Triage.MaxMessages,
		Workers:       cfg.Triage.Workers,
		IgnoreSenders: cfg.Triage.IgnoreSenders,
		HTMLFallback:  cfg.Triage.HTMLFallback,
		AttachFiles:   cfg.Triage.AttachFiles,
		ContentFilter: contentFilter,
		Locator: service.LocatorOptions{
			ExportMime: cfg.Drive.ExportMime,
			Cache:      searchCache,
			CacheTTL:   cfg.Drive.CacheTTL,
			Vetter:     security.NewAttachmentSecurity(cfg.Drive.MaxFileBytes),
		},
	}, metrics, log)

	tokens := auth.NewTokenProvider(&cfg.Google, store, cfg.Redis.TokenKey, log)
	connector := service.NewGoogleConnector(tokens, cfg.Google.Account, drive.Options{
		PageSize:     int64(cfg.Drive.PageSize),
		MaxFileBytes: cfg.Drive.MaxFileBytes,
		Logger:       log,
	}, log)

	runner := service.NewRunner(triage, store, connector, alerts, metrics, service.RunnerOptions{
		TokenKey:   cfg.Redis.TokenKey,
		RunTimeout: cfg.Triage.RunTimeout,
	}, log)

	var manager *jwtpkg.Manager
	if cfg.Trigger.JWTSecret != "" {
		manager = jwtpkg.NewManager(cfg.Trigger.JWTSecret, cfg.Trigger.Issuer, cfg.Trigger.Expiry)
	} else {
		log.Warn("trigger JWT secret not set, trigger endpoint is unauthenticated")
	}

	return &App{
		Config:  cfg,
		Store:   store,
		Metrics: metrics,
		Alerts:  alerts,
		Health:  health.NewHealthChecker(store, log),
		Cache:   searchCache,
		JWT:     manager,
		Runner:  runner,
	}, nil
}

// Close 释放存储连接
func (a *App) Close() error {
	return a.Store.Close()
}

// newStore 选择密钥存储：配置了 Redis 地址时使用 Redis，否则使用内存存储
//
// 配置中的刷新令牌只在存储里没有令牌时写入，避免覆盖已轮换的令牌。
func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Redis.Address == "" {
		log.Info("using memory secret store")
		return memory.NewStore(map[string]string{cfg.Redis.TokenKey: cfg.Google.RefreshToken}), nil
	}

	client, err := redisstore.New(&cfg.Redis, log)
	if err != nil {
		return nil, err
	}

	if cfg.Google.RefreshToken == "" {
		return client, nil
	}
	_, err = client.GetSecret(ctx, cfg.Redis.TokenKey)
	switch {
	case errors.Is(err, storage.ErrSecretNotFound):
		if err := client.SetSecret(ctx, cfg.Redis.TokenKey, cfg.Google.RefreshToken); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to seed refresh token: %w", err)
		}
		log.Info("seeded refresh token into Redis", zap.String("key", cfg.Redis.TokenKey))
	case err != nil:
		log.Warn("failed to check refresh token in Redis", zap.Error(err))
	}
	return client, nil
}
