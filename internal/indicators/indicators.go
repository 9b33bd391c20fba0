// Package indicators 计算技术分析指标，序列按时间正序，数据不足的位置为 NaN
package indicators

import (
	"math"
)

// SMA 简单移动平均
func SMA(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA 指数移动平均，首值即为第一个观测值
func EMA(values []float64, span int) []float64 {
	out := nanSeries(len(values))
	if span <= 0 || len(values) == 0 {
		return out
	}
	alpha := 2 / (float64(span) + 1)
	prev := math.NaN()
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = prev
			continue
		case math.IsNaN(prev):
			prev = v
		default:
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// RSI 相对强弱指标，涨跌幅使用简单平均
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)

	out := nanSeries(n)
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
		case l == 0 && g == 0:
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// MACD 返回 MACD 线、信号线与柱状值
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig = EMA(line, signal)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// Bollinger 布林带，标准差使用样本标准差
func Bollinger(closes []float64, window int, k float64) (middle, upper, lower []float64) {
	middle = SMA(closes, window)
	upper = nanSeries(len(closes))
	lower = nanSeries(len(closes))
	if window < 2 {
		return middle, upper, lower
	}
	for i := window - 1; i < len(closes); i++ {
		mean := middle[i]
		var ss float64
		for _, v := range closes[i-window+1 : i+1] {
			ss += (v - mean) * (v - mean)
		}
		std := math.Sqrt(ss / float64(window-1))
		upper[i] = mean + k*std
		lower[i] = mean - k*std
	}
	return middle, upper, lower
}

// Last 序列最后一个值，空序列返回 NaN
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
