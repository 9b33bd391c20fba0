package tasks

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle 正在执行的任务句柄
type Handle struct {
	ID          string
	Key         string
	SubmittedAt time.Time

	job  Job
	done chan struct{}
	once sync.Once

	result Result
	err    error
}

func newHandle(key string, job Job) *Handle {
	return &Handle{
		ID:          uuid.NewString(),
		Key:         key,
		SubmittedAt: time.Now(),
		job:         job,
		done:        make(chan struct{}),
	}
}

// Done 任务结束时关闭
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// IsDone 非阻塞地判断是否结束
func (h *Handle) IsDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Outcome 返回结果；err 非空表示任务没有正常产出结果
func (h *Handle) Outcome() (Result, error) {
	if !h.IsDone() {
		return Result{}, ErrNotReady
	}
	return h.result, h.err
}

func (h *Handle) complete(r Result) {
	h.once.Do(func() {
		h.result = r
		close(h.done)
	})
}

func (h *Handle) fail(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}
