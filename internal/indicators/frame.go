package indicators

import (
	"fmt"
	"math"

	"github.com/run-bigpig/stockdesk/internal/models"
)

// 指标参数
const (
	ShortWindow     = 20
	LongWindow      = 50
	FastSpan        = 12
	SlowSpan        = 26
	SignalSpan      = 9
	RSIPeriod       = 14
	BollingerWindow = 20
	BollingerK      = 2.0

	Overbought = 70.0
	Oversold   = 30.0
)

// Frame 按日期正序排列的价格与全部指标
type Frame struct {
	Dates      []string
	Close      []float64
	Volume     []float64
	SMA20      []float64
	SMA50      []float64
	EMA12      []float64
	EMA26      []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	RSI        []float64
	BBMiddle   []float64
	BBUpper    []float64
	BBLower    []float64
	VolumeSMA  []float64
}

// Compute 根据行情历史计算指标
func Compute(h *models.PriceHistory) Frame {
	var f Frame
	if h.Failed() {
		return f
	}
	for _, bar := range h.Chronological() {
		f.Dates = append(f.Dates, bar.Date)
		f.Close = append(f.Close, bar.Close)
		f.Volume = append(f.Volume, bar.Volume)
	}
	f.SMA20 = SMA(f.Close, ShortWindow)
	f.SMA50 = SMA(f.Close, LongWindow)
	f.EMA12 = EMA(f.Close, FastSpan)
	f.EMA26 = EMA(f.Close, SlowSpan)
	f.MACD, f.MACDSignal, f.MACDHist = MACD(f.Close, FastSpan, SlowSpan, SignalSpan)
	f.RSI = RSI(f.Close, RSIPeriod)
	f.BBMiddle, f.BBUpper, f.BBLower = Bollinger(f.Close, BollingerWindow, BollingerK)
	f.VolumeSMA = SMA(f.Volume, ShortWindow)
	return f
}

// Len 数据点数量
func (f Frame) Len() int {
	return len(f.Close)
}

// Bias 信号倾向
type Bias int

const (
	Bearish Bias = -1
	Neutral Bias = 0
	Bullish Bias = 1
)

// Signal 单个指标的当前信号
type Signal struct {
	Name  string
	Value string
	Label string
	Bias  Bias
	Valid bool
}

func unavailable(name string) Signal {
	return Signal{Name: name, Value: "N/A", Label: "Insufficient data"}
}

// Summarize 最新一根K线的信号汇总：RSI、MACD、均线趋势、布林带位置
func Summarize(f Frame) []Signal {
	if f.Len() == 0 {
		return []Signal{unavailable("RSI (14)"), unavailable("MACD"), unavailable("Trend (SMA)"), unavailable("Bollinger %")}
	}
	return []Signal{rsiSignal(f), macdSignal(f), trendSignal(f), bollingerSignal(f)}
}

func rsiSignal(f Frame) Signal {
	rsi := Last(f.RSI)
	if math.IsNaN(rsi) {
		return unavailable("RSI (14)")
	}
	s := Signal{Name: "RSI (14)", Value: fmt.Sprintf("%.1f", rsi), Valid: true}
	switch {
	case rsi > Overbought:
		s.Label, s.Bias = "Overbought", Bearish
	case rsi < Oversold:
		s.Label, s.Bias = "Oversold", Bullish
	default:
		s.Label = "Neutral"
	}
	return s
}

func macdSignal(f Frame) Signal {
	line, sig := Last(f.MACD), Last(f.MACDSignal)
	if math.IsNaN(line) || math.IsNaN(sig) {
		return unavailable("MACD")
	}
	s := Signal{Name: "MACD", Value: fmt.Sprintf("%.2f", line), Valid: true}
	if line > sig {
		s.Label, s.Bias = "↑ Above Signal", Bullish
	} else {
		s.Label, s.Bias = "↓ Below Signal", Bearish
	}
	return s
}

func trendSignal(f Frame) Signal {
	sma20, sma50, price := Last(f.SMA20), Last(f.SMA50), Last(f.Close)
	if math.IsNaN(sma20) || math.IsNaN(sma50) {
		return unavailable("Trend (SMA)")
	}
	s := Signal{Name: "Trend (SMA)", Valid: true}
	switch {
	case price > sma20 && sma20 > sma50:
		s.Value, s.Bias = "Strong Bullish", Bullish
	case price > sma20:
		s.Value, s.Bias = "Bullish", Bullish
	case price < sma20 && sma20 < sma50:
		s.Value, s.Bias = "Strong Bearish", Bearish
	default:
		s.Value, s.Bias = "Bearish", Bearish
	}
	s.Label = fmt.Sprintf("Price vs SMA20: %+.1f%%", (price/sma20-1)*100)
	return s
}

func bollingerSignal(f Frame) Signal {
	upper, lower, price := Last(f.BBUpper), Last(f.BBLower), Last(f.Close)
	if math.IsNaN(upper) || math.IsNaN(lower) || upper == lower {
		return unavailable("Bollinger %")
	}
	pos := (price - lower) / (upper - lower) * 100
	s := Signal{Name: "Bollinger %", Value: fmt.Sprintf("%.0f%%", pos), Valid: true}
	switch {
	case pos > 80:
		s.Label, s.Bias = "Near Upper Band", Bearish
	case pos < 20:
		s.Label, s.Bias = "Near Lower Band", Bullish
	default:
		s.Label = "Mid Range"
	}
	return s
}
