package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// WorkerPool 协程池
//
// 用于限制预取阶段的并发数，避免同时向邮箱和模型发起过多请求
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
	log        *zap.Logger
	onPanic    func(recovered interface{})
}

// NewWorkerPool 创建协程池
//
// 参数:
//   - maxWorkers: 最大协程数，<= 0 时按 1 处理
//   - queueSize: 任务队列大小
//   - log: 日志记录器，任务 panic 时记录
func NewWorkerPool(maxWorkers, queueSize int, log *zap.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), queueSize),
		log:        log,
	}
}

// OnPanic 设置任务 panic 时的回调，在日志记录之后调用
func (p *WorkerPool) OnPanic(fn func(recovered interface{})) {
	p.onPanic = fn
}

// Start 启动协程池
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit 提交任务
//
// 如果队列已满，会阻塞直到有空位或 ctx 结束
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case p.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop 关闭队列并等待已提交的任务结束
func (p *WorkerPool) Stop() {
	close(p.taskQueue)
	p.wg.Wait()
}

// worker 工作协程
func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker task panicked", zap.String("panic", fmt.Sprint(r)))
			if p.onPanic != nil {
				p.onPanic(r)
			}
		}
	}()
	task()
}
