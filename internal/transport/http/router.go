package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	jwtpkg "mailtriage/backend/internal/auth/jwt"
	"mailtriage/backend/internal/config"
	"mailtriage/backend/internal/health"
	"mailtriage/backend/internal/middleware"
	"mailtriage/backend/internal/monitoring"
)

// 触发接口不需要请求体
const maxBodyBytes = 64 * 1024

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config     *config.Config
	Runner     TriageRunner
	JWTManager *jwtpkg.Manager // 为 nil 时触发接口不做认证
	Metrics    *monitoring.Metrics
	Alerts     *monitoring.AlertManager
	Health     *health.HealthChecker
	Logger     *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	metrics := deps.Metrics
	if metrics == nil {
		registry := prometheus.NewRegistry()
		metrics = monitoring.NewMetricsWith(registry, registry)
	}

	monitor := middleware.NewMonitoringMiddleware(metrics, deps.Logger)
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(maxBodyBytes))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	if len(corsConfig.AllowOrigins) > 0 {
		router.Use(gincors.New(corsConfig))
	}

	triage := NewTriageHandler(deps.Runner, deps.Alerts, deps.Logger)
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		c.JSON(http.StatusOK, deps.Health.CheckHealth(c.Request.Context()))
	})
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler()))
	}

	router.GET("/metrics", gin.WrapH(metrics.HTTPHandler()))

	// V1 API
	v1 := router.Group("/v1", jwtAuth.RequireAuth())
	{
		v1.POST("/triage/run", triage.Run)
		v1.GET("/triage/run", triage.Run)
		v1.GET("/alerts", triage.Alerts)
	}

	return router
}
