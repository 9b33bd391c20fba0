package tasks

import (
	"context"
	"fmt"
)

// Agent 执行分析的 AI 代理
type Agent interface {
	RunAgent(ctx context.Context, query string) (string, error)
	CompareCompetitors(ctx context.Context, symbol string, competitors []string) (string, error)
}

// AnalysisQuery 为用户问题加上股票上下文
func AnalysisQuery(symbol, query string) string {
	return fmt.Sprintf("The user is asking about %s. %s", symbol, query)
}

// AnalysisJob 针对单只股票回答用户问题
func AnalysisJob(agent Agent, symbol, query string) Job {
	return guarded(symbol, func(ctx context.Context) (string, error) {
		return agent.RunAgent(ctx, AnalysisQuery(symbol, query))
	})
}

// CompetitorJob 对比股票与其竞品
func CompetitorJob(agent Agent, symbol string, competitors []string) Job {
	return guarded(symbol, func(ctx context.Context) (string, error) {
		return agent.CompareCompetitors(ctx, symbol, competitors)
	})
}

// guarded 把错误和 panic 都转换为失败结果
func guarded(symbol string, fn func(ctx context.Context) (string, error)) Job {
	return func(ctx context.Context) (res Result) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("job for %s panicked: %v", symbol, r)
				res = ErrorResult(symbol, panicError(r))
			}
		}()

		text, err := fn(ctx)
		if err != nil {
			log.Warn("job for %s failed: %v", symbol, err)
			return ErrorResult(symbol, err)
		}
		return Result{Status: StatusComplete, Response: text, Symbol: symbol}
	}
}
