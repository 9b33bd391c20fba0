package models

// PriceBar 日线数据
type PriceBar struct {
	Date   string  `json:"date"`
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// PriceHistory 价格历史快照，Data 按日期倒序（最新在前）
type PriceHistory struct {
	Data  []PriceBar `json:"data,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Failed 是否为获取失败
func (h *PriceHistory) Failed() bool {
	return h == nil || h.Error != "" || len(h.Data) == 0
}

// Latest 最新一条
func (h *PriceHistory) Latest() (PriceBar, bool) {
	if h.Failed() {
		return PriceBar{}, false
	}
	return h.Data[0], true
}

// Chronological 按时间正序返回副本
func (h *PriceHistory) Chronological() []PriceBar {
	if h == nil {
		return nil
	}
	out := make([]PriceBar, len(h.Data))
	for i, b := range h.Data {
		out[len(h.Data)-1-i] = b
	}
	return out
}

// Quote 最新行情
type Quote struct {
	Symbol        string  `json:"symbol"`
	Date          string  `json:"date"`
	Price         float64 `json:"price"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// QuoteFromHistory 由历史数据计算最新行情，涨跌相对前一交易日收盘
func QuoteFromHistory(symbol string, h *PriceHistory) (Quote, bool) {
	latest, ok := h.Latest()
	if !ok {
		return Quote{}, false
	}
	q := Quote{
		Symbol: symbol,
		Date:   latest.Date,
		Price:  latest.Close,
		Open:   latest.Open,
		High:   latest.High,
		Low:    latest.Low,
		Volume: latest.Volume,
	}
	ref := latest.Open
	if len(h.Data) > 1 {
		ref = h.Data[1].Close
	}
	q.Change = latest.Close - ref
	if ref != 0 {
		q.ChangePercent = q.Change / ref * 100
	}
	return q, true
}

// NewsItem 新闻搜索结果
type NewsItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
