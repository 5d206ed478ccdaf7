package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailtriage/backend/internal/logger"
	"mailtriage/backend/internal/monitoring"
	"mailtriage/backend/internal/storage"
)

var (
	// ErrRefreshTokenMissing 密钥存储中没有刷新令牌
	ErrRefreshTokenMissing = errors.New("FATAL: Refresh token not found.")
	// ErrRunInProgress 已有运行在进行中
	ErrRunInProgress = errors.New("a triage run is already in progress")
)

const (
	runLockName    = "triage"
	defaultLockTTL = 30 * time.Minute
	fatalAlertID   = "triage_fatal"
)

// RunnerOptions 运行包装参数
type RunnerOptions struct {
	TokenKey   string        // 刷新令牌在密钥存储中的键
	RunTimeout time.Duration // 0 表示不限
}

// Report 一次运行的结果
type Report struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Lines      []string  `json:"lines"`
	Stats      Stats     `json:"stats"`
	Fatal      error     `json:"-"`
}

// Transcript 以换行连接的运行日志
func (r *Report) Transcript() string {
	return strings.Join(r.Lines, "\n")
}

// Runner 每次运行的入口：加锁、读取刷新令牌、建立会话、处理邮件
//
// HTTP 触发和定时任务共用同一个 Runner，同一时间只允许一次运行。
type Runner struct {
	triage    *TriageService
	store     storage.Store
	connector Connector
	alerts    *monitoring.AlertManager
	rec       Recorder
	opts      RunnerOptions
	log       *zap.Logger
	mu        sync.Mutex
}

// NewRunner 创建运行包装
//
// 参数:
//   - triage: 分拣服务
//   - store: 刷新令牌与运行锁所在的存储
//   - connector: 建立已授权会话
//   - alerts: 致命错误告警，可为 nil
//   - rec: 指标记录，可为 nil
//   - opts: 运行参数
//   - log: 日志记录器
func NewRunner(triage *TriageService, store storage.Store, connector Connector, alerts *monitoring.AlertManager, rec Recorder, opts RunnerOptions, log *zap.Logger) *Runner {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.TokenKey == "" {
		opts.TokenKey = "refresh_token"
	}
	return &Runner{
		triage:    triage,
		store:     store,
		connector: connector,
		alerts:    alerts,
		rec:       rec,
		opts:      opts,
		log:       log,
	}
}

// Run 执行一次运行
//
// 返回值:
//   - *Report: 运行结果；致命错误记录在 Report.Fatal 中
//   - error: 仅在已有运行进行中时返回 ErrRunInProgress
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if !r.mu.TryLock() {
		r.rec.RecordRun(monitoring.OutcomeBusy, 0)
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	lockTTL := defaultLockTTL
	if r.opts.RunTimeout > 0 {
		lockTTL = r.opts.RunTimeout + time.Minute
	}
	release, err := r.store.AcquireRunLock(ctx, runLockName, lockTTL)
	if errors.Is(err, storage.ErrLockHeld) {
		r.rec.RecordRun(monitoring.OutcomeBusy, 0)
		return nil, ErrRunInProgress
	}

	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := logger.WithRun(r.log, report.RunID)
	tr := NewTranscript(log)

	if err != nil {
		report.Fatal = fmt.Errorf("failed to acquire run lock: %w", err)
	} else {
		defer func() {
			if err := release(context.Background()); err != nil {
				log.Warn("failed to release run lock", zap.Error(err))
			}
		}()

		runCtx := ctx
		if r.opts.RunTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
			defer cancel()
		}

		tr.Add("Fetch event started!")
		report.Stats, report.Fatal = r.run(runCtx, tr)
	}

	report.FinishedAt = time.Now()
	duration := report.FinishedAt.Sub(report.StartedAt)

	if report.Fatal != nil {
		tr.Add(report.Fatal.Error())
		log.Error("triage run failed", zap.Error(report.Fatal), zap.Duration("duration", duration))
		r.rec.RecordRun(monitoring.OutcomeFatal, duration)
		r.raiseAlert(ctx, report)
	} else {
		log.Info("triage run completed",
			zap.Int("unread", report.Stats.Unread),
			zap.Int("drafted", report.Stats.Drafted),
			zap.Int("errors", report.Stats.Errors),
			zap.Duration("duration", duration),
		)
		r.rec.RecordRun(monitoring.OutcomeCompleted, duration)
		if r.alerts != nil {
			r.alerts.ResolveAlert(ctx, fatalAlertID)
		}
	}

	report.Lines = tr.Lines()
	return report, nil
}

func (r *Runner) run(ctx context.Context, tr *Transcript) (Stats, error) {
	refreshToken, err := r.store.GetSecret(ctx, r.opts.TokenKey)
	if errors.Is(err, storage.ErrSecretNotFound) {
		return Stats{}, ErrRefreshTokenMissing
	}
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrRefreshTokenMissing, err)
	}

	sess, err := r.connector.Connect(ctx, refreshToken)
	if err != nil {
		return Stats{}, err
	}
	tr.Add("Successfully authenticated with Google.")

	return r.triage.Process(ctx, sess, tr)
}

func (r *Runner) raiseAlert(ctx context.Context, report *Report) {
	if r.alerts == nil {
		return
	}
	r.alerts.TriggerAlert(ctx, &monitoring.Alert{
		ID:        fatalAlertID,
		Title:     "Triage run failed",
		Message:   report.Fatal.Error(),
		Level:     monitoring.AlertLevelCritical,
		Component: "triage",
		Metadata:  map[string]interface{}{"run_id": report.RunID},
	})
}
