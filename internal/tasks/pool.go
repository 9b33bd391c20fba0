package tasks

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers 默认工作协程数
const DefaultWorkers = 5

var (
	// ErrPoolClosed 工作池已关闭
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrJobPanicked 任务执行时 panic
	ErrJobPanicked = errors.New("job panicked")
)

// Pool 固定大小的工作池，超出的任务在队列中排队
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Handle
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewPool 创建并启动工作池
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	p := &Pool{
		ctx:    ctx,
		cancel: cancel,
		group:  group,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		group.Go(p.worker)
	}
	log.Debug("worker pool started with %d workers", workers)
	return p
}

// Queued 排队中的任务数
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Submit 提交任务，不阻塞；池已关闭时返回的句柄直接失败
func (p *Pool) Submit(key string, job Job) *Handle {
	h := newHandle(key, job)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		h.fail(ErrPoolClosed)
		return h
	}
	p.queue = append(p.queue, h)
	p.mu.Unlock()

	p.cond.Signal()
	return h
}

// Close 关闭工作池：排队任务以 ErrPoolClosed 结束，等待执行中的任务返回
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pending := p.queue
	p.queue = nil
	p.mu.Unlock()

	p.cond.Broadcast()
	p.cancel()
	for _, h := range pending {
		h.fail(ErrPoolClosed)
	}
	if err := p.group.Wait(); err != nil {
		log.Error("worker pool shutdown: %v", err)
	}
	log.Debug("worker pool closed, %d queued jobs dropped", len(pending))
}

func (p *Pool) next() (*Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return nil, false
	}
	h := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return h, true
}

func (p *Pool) worker() error {
	for {
		h, ok := p.next()
		if !ok {
			return nil
		}
		p.run(h)
	}
}

// run 执行单个任务，panic 转为句柄错误
func (p *Pool) run(h *Handle) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job %s panicked: %v\n%s", h.Key, r, debug.Stack())
			h.fail(panicError(r))
		}
	}()
	h.complete(h.job(p.ctx))
}
