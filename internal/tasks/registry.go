package tasks

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNotReady 任务仍在执行
	ErrNotReady = errors.New("task not ready")
	// ErrUnknownKey 没有该 key 的任务
	ErrUnknownKey = errors.New("unknown task key")
)

// State 任务在登记表中的状态
type State int

const (
	NotFound State = iota
	Pending
	Completed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	default:
		return "not_found"
	}
}

// Submitter 接收任务的执行器
type Submitter interface {
	Submit(key string, job Job) *Handle
}

// Registry key -> 执行中任务句柄。同一 key 同时最多一个任务，
// 句柄在结果被 Resolve 取走后移除。
type Registry struct {
	mu        sync.Mutex
	pool      Submitter
	handles   map[string]*Handle
	submitted chan struct{}
}

// NewRegistry 创建任务登记表
func NewRegistry(pool Submitter) *Registry {
	return &Registry{
		pool:      pool,
		handles:   make(map[string]*Handle),
		submitted: make(chan struct{}, 1),
	}
}

// Submit key 没有在途任务时提交 job，返回是否真正提交
func (r *Registry) Submit(key string, job Job) bool {
	r.mu.Lock()
	if _, ok := r.handles[key]; ok {
		r.mu.Unlock()
		return false
	}
	r.handles[key] = r.pool.Submit(key, job)
	r.mu.Unlock()

	select {
	case r.submitted <- struct{}{}:
	default:
	}
	log.Debug("submitted task %s", key)
	return true
}

// Submitted 有新任务提交时收到信号
func (r *Registry) Submitted() <-chan struct{} {
	return r.submitted
}

// Poll 查询状态，不移除句柄
func (r *Registry) Poll(key string) (State, Result) {
	r.mu.Lock()
	h, ok := r.handles[key]
	r.mu.Unlock()

	if !ok {
		return NotFound, Result{}
	}
	if !h.IsDone() {
		return Pending, Result{}
	}
	return Completed, outcome(h)
}

// Resolve 取走已完成任务的结果并移除句柄
func (r *Registry) Resolve(key string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[key]
	if !ok {
		return Result{}, ErrUnknownKey
	}
	if !h.IsDone() {
		return Result{}, ErrNotReady
	}
	delete(r.handles, key)
	return outcome(h), nil
}

// InFlight key 是否有任务（含已完成未取走）
func (r *Registry) InFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[key]
	return ok
}

// Len 登记的任务数
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Keys 所有登记的 key，按字母序
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CompletedKeys 已完成待取走的 key 及其句柄 ID
func (r *Registry) CompletedKeys() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	done := make(map[string]string)
	for k, h := range r.handles {
		if h.IsDone() {
			done[k] = h.ID
		}
	}
	return done
}

// Reset 丢弃所有句柄，执行中的任务结果将被忽略
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.handles); n > 0 {
		log.Info("dropping %d tracked tasks", n)
	}
	r.handles = make(map[string]*Handle)
}

// outcome 执行层错误转换为失败结果
func outcome(h *Handle) Result {
	res, err := h.Outcome()
	if err != nil {
		symbol, _ := ParseKey(h.Key)
		return ErrorResult(symbol, err)
	}
	return res
}
