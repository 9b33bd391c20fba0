package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	p := NewPool(DefaultWorkers)
	t.Cleanup(p.Close)
	return NewRegistry(p)
}

func waitCompleted(t *testing.T, r *Registry, key string) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, _ := r.Poll(key)
		return s == Completed
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDuplicateSubmitRunsOnce(t *testing.T) {
	r := newTestRegistry(t)

	var runs atomic.Int32
	release := make(chan struct{})
	job := func(ctx context.Context) Result {
		runs.Add(1)
		<-release
		return Result{Status: StatusComplete, Response: "ok", Symbol: "AAPL"}
	}

	assert.True(t, r.Submit("AAPL", job))
	assert.False(t, r.Submit("AAPL", job))

	state, _ := r.Poll("AAPL")
	assert.Equal(t, Pending, state)

	close(release)
	waitCompleted(t, r, "AAPL")

	// 结果未取走前仍视为在途
	assert.False(t, r.Submit("AAPL", job))
	assert.EqualValues(t, 1, runs.Load())
}

func TestConcurrentSubmitSameKey(t *testing.T) {
	r := newTestRegistry(t)

	var runs atomic.Int32
	var accepted atomic.Int32
	release := make(chan struct{})
	job := func(ctx context.Context) Result {
		runs.Add(1)
		<-release
		return Result{Status: StatusComplete}
	}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Submit("NVDA", job) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)
	waitCompleted(t, r, "NVDA")

	assert.EqualValues(t, 1, accepted.Load())
	assert.EqualValues(t, 1, runs.Load())
}

func TestResolveTwice(t *testing.T) {
	r := newTestRegistry(t)

	r.Submit("MSFT", okJob("MSFT"))
	waitCompleted(t, r, "MSFT")

	res, err := r.Resolve("MSFT")
	require.NoError(t, err)
	assert.Equal(t, "done MSFT", res.Response)

	_, err = r.Resolve("MSFT")
	assert.ErrorIs(t, err, ErrUnknownKey)

	state, _ := r.Poll("MSFT")
	assert.Equal(t, NotFound, state)
	assert.Zero(t, r.Len())
}

func TestResolveNotReady(t *testing.T) {
	r := newTestRegistry(t)

	release := make(chan struct{})
	defer close(release)
	r.Submit("AMZN", func(ctx context.Context) Result {
		<-release
		return Result{Status: StatusComplete}
	})

	_, err := r.Resolve("AMZN")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.True(t, r.InFlight("AMZN"))
}

func TestPollDoesNotClear(t *testing.T) {
	r := newTestRegistry(t)

	r.Submit("GOOGL", okJob("GOOGL"))
	waitCompleted(t, r, "GOOGL")

	for i := 0; i < 3; i++ {
		state, res := r.Poll("GOOGL")
		assert.Equal(t, Completed, state)
		assert.Equal(t, "done GOOGL", res.Response)
	}
	assert.Equal(t, 1, r.Len())
}

func TestTransportFailureBecomesErrorResult(t *testing.T) {
	r := newTestRegistry(t)

	key := CompetitorKey("META")
	r.Submit(key, func(ctx context.Context) Result { panic("connection reset") })
	waitCompleted(t, r, key)

	res, err := r.Resolve(key)
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "META", res.Symbol)
	assert.Contains(t, res.Response, ErrorPrefix)
	assert.Contains(t, res.Response, "connection reset")
}

func TestKeysAndReset(t *testing.T) {
	r := newTestRegistry(t)

	release := make(chan struct{})
	defer close(release)
	block := func(ctx context.Context) Result {
		<-release
		return Result{}
	}
	r.Submit("TSLA", block)
	r.Submit(CompetitorKey("AAPL"), block)

	assert.Equal(t, []string{"TSLA", "competitor_analysis_AAPL"}, r.Keys())
	assert.Empty(t, r.CompletedKeys())

	r.Reset()
	assert.Zero(t, r.Len())
	assert.True(t, r.Submit("TSLA", okJob("TSLA")))
}

func TestParseKey(t *testing.T) {
	sym, comp := ParseKey(CompetitorKey("AAPL"))
	assert.Equal(t, "AAPL", sym)
	assert.True(t, comp)

	sym, comp = ParseKey(AnalysisKey("NVDA"))
	assert.Equal(t, "NVDA", sym)
	assert.False(t, comp)
}
