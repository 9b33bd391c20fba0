package services

import (
	"context"

	"github.com/run-bigpig/stockdesk/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultRefreshConcurrency 批量刷新的并发数
const DefaultRefreshConcurrency = 4

// HistoryFetcher 获取价格历史
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, symbol string, days int) *models.PriceHistory
}

// HistoryRefresher 能跳过缓存重新获取价格历史
type HistoryRefresher interface {
	Refresh(ctx context.Context, symbol string, days int) *models.PriceHistory
}

// FetchHistories 并发获取多只股票的价格历史，允许使用缓存
func FetchHistories(ctx context.Context, fetcher HistoryFetcher, symbols []string, days, concurrency int) map[string]*models.PriceHistory {
	return collectHistories(ctx, symbols, concurrency, func(ctx context.Context, sym string) *models.PriceHistory {
		return fetcher.FetchHistory(ctx, sym, days)
	})
}

// RefreshHistories 并发重新获取多只股票的价格历史，单只失败不影响其他。
// fetcher 实现 HistoryRefresher 时跳过缓存。
func RefreshHistories(ctx context.Context, fetcher HistoryFetcher, symbols []string, days, concurrency int) map[string]*models.PriceHistory {
	get := fetcher.FetchHistory
	if r, ok := fetcher.(HistoryRefresher); ok {
		get = r.Refresh
	}
	out := collectHistories(ctx, symbols, concurrency, func(ctx context.Context, sym string) *models.PriceHistory {
		return get(ctx, sym, days)
	})

	failed := 0
	for _, h := range out {
		if h.Failed() {
			failed++
		}
	}
	log.Info("refreshed %d symbols, %d failed", len(symbols), failed)
	return out
}

func collectHistories(ctx context.Context, symbols []string, concurrency int, get func(context.Context, string) *models.PriceHistory) map[string]*models.PriceHistory {
	if concurrency <= 0 {
		concurrency = DefaultRefreshConcurrency
	}
	results := make([]*models.PriceHistory, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			results[i] = get(gctx, sym)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*models.PriceHistory, len(symbols))
	for i, sym := range symbols {
		out[sym] = results[i]
	}
	return out
}
