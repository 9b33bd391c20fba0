// Package tasks 后台任务：有界工作池、按 key 去重的任务登记表与完成轮询
package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/run-bigpig/stockdesk/internal/logger"
)

var log = logger.New("Tasks")

// Status 任务结果状态
type Status string

const (
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Result 任务结果，失败也以结果形式返回
type Result struct {
	Status   Status `json:"status"`
	Response string `json:"response"`
	Symbol   string `json:"symbol"`
}

// OK 是否成功
func (r Result) OK() bool {
	return r.Status == StatusComplete
}

// Job 在工作池中执行的任务
type Job func(ctx context.Context) Result

// ErrorPrefix 失败回复的前缀
const ErrorPrefix = "Sorry, I encountered an error: "

// ErrorResult 把错误转换为失败结果
func ErrorResult(symbol string, err error) Result {
	return Result{
		Status:   StatusError,
		Response: ErrorPrefix + err.Error(),
		Symbol:   symbol,
	}
}

const competitorKeyPrefix = "competitor_analysis_"

// AnalysisKey 个股分析任务的 key
func AnalysisKey(symbol string) string {
	return symbol
}

// CompetitorKey 竞品对比任务的 key
func CompetitorKey(symbol string) string {
	return competitorKeyPrefix + symbol
}

// ParseKey 解析 key，返回股票代码以及是否为竞品对比任务
func ParseKey(key string) (symbol string, competitor bool) {
	if rest, ok := strings.CutPrefix(key, competitorKeyPrefix); ok {
		return rest, true
	}
	return key, false
}

// panicError 任务 panic 转换成的错误
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrJobPanicked, err)
	}
	return fmt.Errorf("%w: %v", ErrJobPanicked, r)
}
