package chart

import (
	"math"

	"github.com/run-bigpig/stockdesk/internal/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatPrice 带千分位的价格
func FormatPrice(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// FormatVolume 成交量，超过百万时缩写
func FormatVolume(v float64) string {
	switch {
	case v >= 1e9:
		return printer.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return printer.Sprintf("%.2fM", v/1e6)
	default:
		return printer.Sprintf("%d", int64(math.Round(v)))
	}
}

// FormatChange 涨跌额与涨跌幅，例如 "+1.25 (+0.84%)"
func FormatChange(change, percent float64) string {
	return printer.Sprintf("%+.2f (%+.2f%%)", change, percent)
}

// QuoteLine 单行行情摘要
func QuoteLine(q models.Quote) string {
	return printer.Sprintf("%s  %s  %s", q.Symbol, FormatPrice(q.Price), FormatChange(q.Change, q.ChangePercent))
}
