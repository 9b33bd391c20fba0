package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/run-bigpig/stockdesk/internal/indicators"
	"github.com/run-bigpig/stockdesk/internal/models"
	"github.com/run-bigpig/stockdesk/internal/services"
)

// ReevaluateMsg 轮询器发现任务完成时发送，触发一次完整的重新评估
type ReevaluateMsg struct{}

// symbolResolvedMsg 股票代码识别完成
type symbolResolvedMsg struct {
	query  string
	symbol string
	ok     bool
	data   *models.PriceHistory
}

// refreshDoneMsg 刷新全部价格完成
type refreshDoneMsg struct {
	histories map[string]*models.PriceHistory
}

// technicalLoadedMsg 技术分析数据加载完成
type technicalLoadedMsg struct {
	symbol  string
	history *models.PriceHistory
	frame   indicators.Frame
}

// competitorsLoadedMsg 竞品价格加载完成
type competitorsLoadedMsg struct {
	symbol    string
	histories map[string]*models.PriceHistory
}

// competitorAddedMsg 添加竞品所需的价格获取完成
type competitorAddedMsg struct {
	symbol string
	data   *models.PriceHistory
}

func (m *Model) resolveSymbolCmd(query string) tea.Cmd {
	ctx, extractor, prices, days := m.ctx, m.deps.Extractor, m.deps.Prices, m.state.HistoryDays()
	tracked := make(map[string]bool)
	for _, sym := range m.state.Symbols() {
		tracked[sym] = true
	}
	return func() tea.Msg {
		symbol, ok := extractor.ExtractSymbol(ctx, query)
		msg := symbolResolvedMsg{query: query, symbol: symbol, ok: ok}
		if ok && !tracked[symbol] {
			msg.data = prices.FetchHistory(ctx, symbol, days)
		}
		return msg
	}
}

func (m *Model) refreshAllCmd() tea.Cmd {
	ctx, prices, days, symbols := m.ctx, m.deps.Prices, m.state.HistoryDays(), m.state.Symbols()
	return func() tea.Msg {
		return refreshDoneMsg{histories: services.RefreshHistories(ctx, prices, symbols, days, services.DefaultRefreshConcurrency)}
	}
}

func (m *Model) loadTechnicalCmd(symbol string) tea.Cmd {
	ctx, prices, days := m.ctx, m.deps.Prices, m.deps.TechnicalDays
	return func() tea.Msg {
		h := prices.FetchHistory(ctx, symbol, days)
		return technicalLoadedMsg{symbol: symbol, history: h, frame: indicators.Compute(h)}
	}
}

func (m *Model) loadCompetitorsCmd(symbol string, peers []string) tea.Cmd {
	ctx, prices, days := m.ctx, m.deps.Prices, m.state.HistoryDays()
	return func() tea.Msg {
		return competitorsLoadedMsg{symbol: symbol, histories: services.FetchHistories(ctx, prices, peers, days, services.DefaultRefreshConcurrency)}
	}
}

func (m *Model) addCompetitorCmd(symbol string) tea.Cmd {
	ctx, prices, days := m.ctx, m.deps.Prices, m.state.HistoryDays()
	return func() tea.Msg {
		return competitorAddedMsg{symbol: symbol, data: prices.FetchHistory(ctx, symbol, days)}
	}
}

func withContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
