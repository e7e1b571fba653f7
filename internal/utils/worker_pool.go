package utils

import (
	"sync"

	"go.uber.org/zap"
)

// WorkerPool 通用协程池，自动审核的处置动作在这里异步执行
type WorkerPool struct {
	jobs      chan func()
	workerNum int
	wg        sync.WaitGroup
	logger    *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool 创建一个新的协程池，需要调用 Start 后才会消费任务
func NewWorkerPool(workerNum, queueSize int, logger *zap.Logger) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		jobs:      make(chan func(), queueSize),
		workerNum: workerNum,
		logger:    logger,
	}
}

// Start 启动协程池
func (p *WorkerPool) Start() {
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.run(workerID, job)
			}
		}(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workerNum))
}

// run 使用 defer recover 防止单个任务 panic 导致 worker 挂掉
func (p *WorkerPool) run(workerID int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker job panic", zap.Int("worker", workerID), zap.Any("panic", r))
		}
	}()
	job()
}

// Submit 提交任务到协程池，不会阻塞调用方
// 队列已满或协程池已停止时返回 false，任务被丢弃
func (p *WorkerPool) Submit(job func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Warn("worker pool queue full, job rejected", zap.Int("queue_size", cap(p.jobs)))
		return false
	}
}

// Stop 停止接收新任务，等待队列中已有的任务执行完毕
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
