package httptransport

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailtriage/backend/internal/monitoring"
	"mailtriage/backend/internal/service"
)

// TriageRunner 执行一次分拣运行，由 service.Runner 实现
type TriageRunner interface {
	Run(ctx context.Context) (*service.Report, error)
}

// TriageHandler 运行触发接口
type TriageHandler struct {
	runner TriageRunner
	alerts *monitoring.AlertManager
	log    *zap.Logger
}

// NewTriageHandler 创建运行触发处理器
func NewTriageHandler(runner TriageRunner, alerts *monitoring.AlertManager, log *zap.Logger) *TriageHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TriageHandler{runner: runner, alerts: alerts, log: log}
}

// Run 触发一次运行
//
// 默认以纯文本返回运行日志：致命错误返回 500，已有运行进行中返回 409，其余返回 200。
// 带 ?format=json 时以统一 JSON 结构返回完整报告。
func (h *TriageHandler) Run(c *gin.Context) {
	// 客户端断开不应中断已经开始的运行
	ctx := context.WithoutCancel(c.Request.Context())

	report, err := h.runner.Run(ctx)
	if err != nil {
		status := statusFor(err)
		msg := MsgInternalError
		if status == http.StatusConflict {
			msg = MsgRunInProgress
		}
		h.log.Warn("triage run rejected", zap.Error(err), zap.Int("status", status))
		h.respond(c, status, msg, nil, msg)
		return
	}

	status := statusFor(report.Fatal)
	msg := "ok"
	if report.Fatal != nil {
		msg = report.Fatal.Error()
	}
	h.respond(c, status, msg, report, report.Transcript())
}

// Alerts 返回未解决的告警
func (h *TriageHandler) Alerts(c *gin.Context) {
	if h.alerts == nil {
		Success(c, []monitoring.Alert{})
		return
	}
	alerts := h.alerts.GetActiveAlerts()
	if alerts == nil {
		alerts = []monitoring.Alert{}
	}
	Success(c, alerts)
}

func (h *TriageHandler) respond(c *gin.Context, status int, msg string, data interface{}, text string) {
	if c.Query("format") == "json" {
		if status == http.StatusOK {
			Success(c, data)
		} else {
			Error(c, status, msg, data)
		}
		return
	}
	Text(c, status, text)
}
