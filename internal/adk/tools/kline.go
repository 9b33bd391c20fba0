package tools

import (
	"fmt"
	"strings"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// GetPriceHistoryInput 日线历史输入参数
type GetPriceHistoryInput struct {
	Symbol string `json:"symbol" jsonschema:"stock ticker symbol, e.g. NVDA"`
	Days   int    `json:"days,omitzero" jsonschema:"number of trading days, default 30"`
}

// GetPriceHistoryOutput 日线历史输出
type GetPriceHistoryOutput struct {
	Data string `json:"data" jsonschema:"daily bars, most recent first"`
}

const maxHistoryRows = 10

// createPriceHistoryTool 创建日线历史工具
func (r *Registry) createPriceHistoryTool() (tool.Tool, error) {
	handler := func(ctx tool.Context, input GetPriceHistoryInput) (GetPriceHistoryOutput, error) {
		symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
		log.Info("get_price_history symbol=%s days=%d", symbol, input.Days)

		if symbol == "" {
			return GetPriceHistoryOutput{Data: "Please provide a stock symbol."}, nil
		}
		days := input.Days
		if days <= 0 {
			days = 30
		}

		h := r.market.FetchHistory(ctx, symbol, days)
		if h.Failed() {
			return GetPriceHistoryOutput{Data: fmt.Sprintf("Could not fetch data for %s: %s", symbol, h.Error)}, nil
		}

		// 只输出最近几条，另附区间涨跌
		var sb strings.Builder
		newest, oldest := h.Data[0], h.Data[len(h.Data)-1]
		if oldest.Close != 0 {
			fmt.Fprintf(&sb, "%s over %d sessions: %.2f -> %.2f (%+.2f%%)\n",
				symbol, len(h.Data), oldest.Close, newest.Close, (newest.Close-oldest.Close)/oldest.Close*100)
		}
		for i, b := range h.Data {
			if i >= maxHistoryRows {
				break
			}
			fmt.Fprintf(&sb, "%s: open %.2f high %.2f low %.2f close %.2f volume %.0f\n",
				b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		return GetPriceHistoryOutput{Data: sb.String()}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "get_price_history",
		Description: "Fetch recent daily price bars for a stock to judge trend and momentum.",
	}, handler)
}
