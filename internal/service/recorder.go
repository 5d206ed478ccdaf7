package service

import (
	"context"
	"time"
)

// Recorder 运行指标记录，由 monitoring.Metrics 实现
type Recorder interface {
	RecordRun(outcome string, duration time.Duration)
	RecordVerdict(verdict string)
	RecordDraft(withAttachment bool)
	RecordMarkedRead()
	RecordError(stage string)
	RecordPanic()
	RecordAttachmentSize(size int64)
	RecordModelCall(purpose string, duration time.Duration)
	RecordEmailProcessingTime(duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(string, time.Duration) {}
func (nopRecorder) RecordVerdict(string) {}
func (nopRecorder) RecordDraft(bool) {}
func (nopRecorder) RecordMarkedRead() {}
func (nopRecorder) RecordError(string) {}
func (nopRecorder) RecordPanic() {}
func (nopRecorder) RecordAttachmentSize(int64) {}
func (nopRecorder) RecordModelCall(string, time.Duration) {}
func (nopRecorder) RecordEmailProcessingTime(time.Duration) {}

// timedGenerator 记录每次模型调用的耗时
type timedGenerator struct {
	gen     Generator
	purpose string
	rec     Recorder
}

func (g timedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := g.gen.Generate(ctx, prompt)
	g.rec.RecordModelCall(g.purpose, time.Since(start))
	return out, err
}
