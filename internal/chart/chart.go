// Package chart 在终端中绘制价格走势图与行情指标
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/run-bigpig/stockdesk/internal/models"

	"github.com/charmbracelet/lipgloss"
)

// 提示文案
const NoDataText = "No chart data available."

// DataUnavailable 行情获取失败时的提示
func DataUnavailable(symbol string) string {
	return fmt.Sprintf("Could not fetch data for %s.", symbol)
}

var (
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00C853"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5252"))
	axisStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	valueStyle  = lipgloss.NewStyle().Bold(true)
	metricStyle = lipgloss.NewStyle().Padding(0, 2, 0, 0)
)

// 八分之一高度的方块，用于列顶的细分
var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Notice 行情不可用时返回提示文本，可用时返回空串
func Notice(symbol string, h *models.PriceHistory) string {
	switch {
	case h == nil:
		return NoDataText
	case h.Error != "":
		return DataUnavailable(symbol)
	case len(h.Data) == 0:
		return NoDataText
	}
	return ""
}

// Resample 把序列缩放到 width 个点，缩小取区间均值，放大重复取值
func Resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) == 0 {
		return nil
	}
	out := make([]float64, width)
	n := len(values)
	for col := 0; col < width; col++ {
		start := col * n / width
		end := (col + 1) * n / width
		if end <= start {
			out[col] = values[start]
			continue
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[col] = sum / float64(end-start)
	}
	return out
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Area 绘制 height 行的面积图，每列高度按最低到最高价线性映射
func Area(values []float64, width, height int) []string {
	if height <= 0 {
		return nil
	}
	cols := Resample(values, width)
	lo, hi := bounds(cols)
	span := hi - lo

	levels := make([]int, len(cols))
	total := height * 8
	for i, v := range cols {
		if span == 0 {
			levels[i] = total / 2
			continue
		}
		levels[i] = 1 + int(math.Round((v-lo)/span*float64(total-1)))
	}

	rows := make([]string, height)
	for r := 0; r < height; r++ {
		floor := (height - 1 - r) * 8
		var sb strings.Builder
		for _, lvl := range levels {
			fill := lvl - floor
			switch {
			case fill >= 8:
				sb.WriteRune(eighths[8])
			case fill <= 0:
				sb.WriteRune(' ')
			default:
				sb.WriteRune(eighths[fill])
			}
		}
		rows[r] = sb.String()
	}
	return rows
}

// Sparkline 单行迷你走势
func Sparkline(values []float64, width int) string {
	cols := Resample(values, width)
	lo, hi := bounds(cols)
	var sb strings.Builder
	for _, v := range cols {
		idx := 4
		if hi > lo {
			idx = 1 + int(math.Round((v-lo)/(hi-lo)*7))
		}
		sb.WriteRune(eighths[idx])
	}
	return sb.String()
}

func closes(h *models.PriceHistory) []float64 {
	bars := h.Chronological()
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func trendStyle(values []float64) lipgloss.Style {
	if len(values) > 1 && values[len(values)-1] < values[0] {
		return downStyle
	}
	return upStyle
}

// Render 绘制收盘价面积图，左侧为价格刻度，底部为起止日期
func Render(symbol string, h *models.PriceHistory, width, height int) string {
	if notice := Notice(symbol, h); notice != "" {
		return notice
	}
	values := closes(h)
	lo, hi := bounds(values)
	top, bottom := FormatPrice(hi), FormatPrice(lo)
	axisWidth := max(lipgloss.Width(top), lipgloss.Width(bottom)) + 1
	plotWidth := max(width-axisWidth-1, 10)
	height = max(height, 3)

	style := trendStyle(values)
	rows := Area(values, plotWidth, height)

	var sb strings.Builder
	for i, row := range rows {
		label := ""
		switch i {
		case 0:
			label = top
		case len(rows) - 1:
			label = bottom
		}
		sb.WriteString(axisStyle.Render(fmt.Sprintf("%*s│", axisWidth, label)))
		sb.WriteString(style.Render(row))
		sb.WriteByte('\n')
	}

	bars := h.Chronological()
	first, last := bars[0].Date, bars[len(bars)-1].Date
	gap := max(plotWidth-len(first)-len(last), 1)
	sb.WriteString(strings.Repeat(" ", axisWidth+1))
	sb.WriteString(labelStyle.Render(first + strings.Repeat(" ", gap) + last))
	return sb.String()
}

// Metrics 最新收盘、开盘、最高、最低与成交量
func Metrics(symbol string, h *models.PriceHistory) string {
	q, ok := models.QuoteFromHistory(symbol, h)
	if !ok {
		return ""
	}
	changeStyle := upStyle
	if q.Change < 0 {
		changeStyle = downStyle
	}
	metric := func(label, value string) string {
		return metricStyle.Render(labelStyle.Render(label+" ") + valueStyle.Render(value))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		metric("Close", FormatPrice(q.Price))+metricStyle.Render(changeStyle.Render(FormatChange(q.Change, q.ChangePercent))),
		metric("Open", FormatPrice(q.Open)),
		metric("High", FormatPrice(q.High)),
		metric("Low", FormatPrice(q.Low)),
		metric("Volume", FormatVolume(q.Volume)),
	)
}

// Mini 竞品列表中的迷你走势
func Mini(h *models.PriceHistory, width int) string {
	if h.Failed() {
		return axisStyle.Render(strings.Repeat("·", width))
	}
	values := closes(h)
	return trendStyle(values).Render(Sparkline(values, width))
}
