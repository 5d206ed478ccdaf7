package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	p := NewWorkerPool(3, 10, zap.NewNop())
	p.Start(context.Background())

	var count int32
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(context.Background(), func() {
			atomic.AddInt32(&count, 1)
		}))
	}
	p.Stop()

	assert.Equal(t, int32(20), atomic.LoadInt32(&count))
}

func TestWorkerPool_RecoversPanic(t *testing.T) {
	p := NewWorkerPool(1, 2, nil)
	var recovered interface{}
	p.OnPanic(func(r interface{}) { recovered = r })
	p.Start(context.Background())

	var ran int32
	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))
	require.NoError(t, p.Submit(context.Background(), func() { atomic.AddInt32(&ran, 1) }))
	p.Stop()

	assert.Equal(t, "boom", recovered)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran), "panic 之后的任务仍然执行")
}

func TestWorkerPool_SubmitHonorsContext(t *testing.T) {
	p := NewWorkerPool(1, 0, nil)
	// 未启动，无缓冲队列无法写入

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
