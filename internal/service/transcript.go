package service

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Transcript 一次运行的有序日志，同时写入结构化日志
type Transcript struct {
	mu    sync.Mutex
	lines []string
	log   *zap.Logger
}

// NewTranscript 创建运行日志
func NewTranscript(log *zap.Logger) *Transcript {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transcript{log: log}
}

// Add 追加一行
func (t *Transcript) Add(line string) {
	t.mu.Lock()
	t.lines = append(t.lines, line)
	t.mu.Unlock()
	t.log.Info(strings.TrimSpace(line))
}

// Addf 格式化后追加一行
func (t *Transcript) Addf(format string, args ...interface{}) {
	t.Add(fmt.Sprintf(format, args...))
}

// Error 追加一行错误，并以 error 级别记录
func (t *Transcript) Error(line string, err error) {
	t.mu.Lock()
	t.lines = append(t.lines, fmt.Sprintf("%s: %v", line, err))
	t.mu.Unlock()
	t.log.Error(strings.TrimSpace(strings.TrimPrefix(line, "- ")), zap.Error(err))
}

// Lines 返回所有行的副本
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// String 以换行连接所有行
func (t *Transcript) String() string {
	return strings.Join(t.Lines(), "\n")
}
