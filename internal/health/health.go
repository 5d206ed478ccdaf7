package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailtriage/backend/internal/storage"
)

const checkTimeout = 3 * time.Second

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
//
// 存活检查只反映进程状态；就绪检查要求密钥存储可用，
// 否则下一次运行会在读取刷新令牌时失败。
func NewHealthChecker(store storage.Store, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	hc.addChecks()
	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	hc.health.AddReadinessCheck("secret-store", SecretStoreCheck(hc.store))
}

// LiveHandler 存活检查端点
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪检查端点
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行健康检查，返回各组件状态
func (hc *HealthChecker) CheckHealth(ctx context.Context) map[string]string {
	results := make(map[string]string)

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := hc.store.Health(ctx); err != nil {
		hc.logger.Warn("secret store health check failed", zap.Error(err))
		results["secret_store"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["secret_store"] = "OK"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)
	return results
}

// SecretStoreCheck 密钥存储健康检查
func SecretStoreCheck(store storage.Store) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		return store.Health(ctx)
	}
}
