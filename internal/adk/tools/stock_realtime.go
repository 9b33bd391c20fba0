package tools

import (
	"fmt"
	"strings"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// GetStockInfoInput 获取股票最新行情输入参数
type GetStockInfoInput struct {
	Symbol string `json:"symbol" jsonschema:"stock ticker symbol, e.g. AAPL"`
}

// GetStockInfoOutput 最新行情输出
type GetStockInfoOutput struct {
	Data string `json:"data" jsonschema:"latest end of day price data"`
}

// createStockInfoTool 创建最新收盘行情工具
func (r *Registry) createStockInfoTool() (tool.Tool, error) {
	handler := func(ctx tool.Context, input GetStockInfoInput) (GetStockInfoOutput, error) {
		symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
		log.Info("get_stock_info symbol=%s", symbol)

		if symbol == "" {
			return GetStockInfoOutput{Data: "Please provide a stock symbol."}, nil
		}

		q, err := r.market.LatestQuote(ctx, symbol)
		if err != nil {
			log.Warn("get_stock_info %s: %v", symbol, err)
			return GetStockInfoOutput{Data: fmt.Sprintf("Could not fetch data for %s: %v", symbol, err)}, nil
		}

		return GetStockInfoOutput{Data: fmt.Sprintf(
			"%s EOD %s: close %.2f, open %.2f, high %.2f, low %.2f, volume %.0f, change %+.2f (%+.2f%%)",
			q.Symbol, q.Date, q.Price, q.Open, q.High, q.Low, q.Volume, q.Change, q.ChangePercent,
		)}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "get_stock_info",
		Description: "Fetch the latest End of Day (EOD) stock price data for a stock symbol: close, open, high, low, volume and daily change.",
	}, handler)
}
