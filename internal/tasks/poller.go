package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval 默认轮询间隔
const DefaultPollInterval = 2 * time.Second

// safeCall 安全调用，捕获 panic 避免轮询协程退出
func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic recovered: %v", r)
		}
	}()
	fn()
}

// Poller 有任务时按固定间隔检查，发现新完成的任务就通知界面重新计算。
// 没有任务时不启动定时器。
type Poller struct {
	registry *Registry
	interval time.Duration
	notify   func()

	mu        sync.Mutex
	announced map[string]string // key -> 已通知过的句柄 ID

	// 定时器触发次数
	ticks atomic.Int64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller 创建轮询器
func NewPoller(registry *Registry, interval time.Duration, notify func()) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		registry:  registry,
		interval:  interval,
		notify:    notify,
		announced: make(map[string]string),
		stopChan:  make(chan struct{}),
	}
}

// Start 启动轮询协程
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop 停止轮询并等待协程退出
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	var ticker *time.Ticker
	var tick <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	for {
		if ticker == nil && p.registry.Len() > 0 {
			ticker = time.NewTicker(p.interval)
			tick = ticker.C
		}

		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-p.registry.Submitted():
		case <-tick:
			p.ticks.Add(1)
			safeCall(func() {
				if p.Check() && p.notify != nil {
					p.notify()
				}
			})
			if p.registry.Len() == 0 {
				stopTicker()
			}
		}
	}
}

// Check 是否有自上次检查后新完成的任务
func (p *Poller) Check() bool {
	completed := p.registry.CompletedKeys()

	p.mu.Lock()
	defer p.mu.Unlock()

	fresh := false
	for key, id := range completed {
		if p.announced[key] != id {
			p.announced[key] = id
			fresh = true
		}
	}
	for key := range p.announced {
		if _, ok := completed[key]; !ok {
			delete(p.announced, key)
		}
	}
	return fresh
}
