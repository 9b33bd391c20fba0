package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/run-bigpig/stockdesk/internal/logger"
	"github.com/run-bigpig/stockdesk/internal/models"
)

var log = logger.New("Services")

// DefaultMarketStackURL MarketStack 接口地址
const DefaultMarketStackURL = "http://api.marketstack.com/v1"

// ErrNoData 接口没有返回数据
var ErrNoData = errors.New("no price data returned")

// MarketConfig 行情服务配置
type MarketConfig struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
	CacheDir string // 为空时不启用文件缓存
	Timeout  time.Duration
}

// MarketService 行情服务，日线数据来自 MarketStack
type MarketService struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	memCache  *MemoryCache[*models.PriceHistory]
	fileCache *FileCache[*models.PriceHistory]
	cacheTTL  time.Duration
}

// NewMarketService 创建行情服务
func NewMarketService(cfg MarketConfig) *MarketService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMarketStackURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	s := &MarketService{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		memCache: NewMemoryCache[*models.PriceHistory](cfg.CacheTTL),
		cacheTTL: cfg.CacheTTL,
	}
	if cfg.CacheDir != "" {
		fc, err := NewFileCache[*models.PriceHistory](cfg.CacheDir)
		if err != nil {
			log.Warn("file cache disabled: %v", err)
		} else {
			s.fileCache = fc
		}
	}
	return s
}

// eodResponse MarketStack /eod 响应
type eodResponse struct {
	Data  []eodBar  `json:"data"`
	Error *apiError `json:"error"`
}

type eodBar struct {
	Date   string  `json:"date"`
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FetchHistory 获取最近 days 个交易日的日线，优先使用缓存，失败时返回带 Error 的结果
func (s *MarketService) FetchHistory(ctx context.Context, symbol string, days int) *models.PriceHistory {
	symbol = normalizeSymbol(symbol)
	key := historyKey(symbol, days)

	if h, ok := s.memCache.Get(key); ok {
		return h
	}
	if s.fileCache != nil {
		if h, _, ok := s.fileCache.Get(key, s.cacheTTL); ok {
			s.memCache.Set(key, h)
			return h
		}
	}
	return s.load(ctx, symbol, days)
}

// Refresh 跳过缓存直接请求接口，请求失败时仍回退到旧的文件缓存
func (s *MarketService) Refresh(ctx context.Context, symbol string, days int) *models.PriceHistory {
	symbol = normalizeSymbol(symbol)
	s.Invalidate(symbol, days)
	return s.load(ctx, symbol, days)
}

// load 请求接口并写入两级缓存
func (s *MarketService) load(ctx context.Context, symbol string, days int) *models.PriceHistory {
	key := historyKey(symbol, days)
	bars, err := s.fetchEOD(ctx, symbol, days)
	if err != nil {
		log.Warn("fetch history for %s: %v", symbol, err)
		if s.fileCache != nil {
			if h, at, ok := s.fileCache.Get(key, 0); ok {
				log.Info("serving stale history for %s from %s", symbol, at.Format(time.RFC3339))
				return h
			}
		}
		return &models.PriceHistory{Error: err.Error()}
	}

	h := &models.PriceHistory{Data: bars}
	s.memCache.Set(key, h)
	if s.fileCache != nil {
		if err := s.fileCache.Set(key, h); err != nil {
			log.Warn("write history cache for %s: %v", symbol, err)
		}
	}
	return h
}

// LatestQuote 最新收盘行情
func (s *MarketService) LatestQuote(ctx context.Context, symbol string) (models.Quote, error) {
	h := s.FetchHistory(ctx, symbol, 2)
	if h.Error != "" {
		return models.Quote{}, errors.New(h.Error)
	}
	q, ok := models.QuoteFromHistory(normalizeSymbol(symbol), h)
	if !ok {
		return models.Quote{}, ErrNoData
	}
	return q, nil
}

// Invalidate 丢弃某只股票的内存缓存
func (s *MarketService) Invalidate(symbol string, days int) {
	s.memCache.Delete(historyKey(normalizeSymbol(symbol), days))
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func historyKey(symbol string, days int) string {
	return fmt.Sprintf("%s_%d", symbol, days)
}

func (s *MarketService) fetchEOD(ctx context.Context, symbol string, limit int) ([]models.PriceBar, error) {
	if s.apiKey == "" {
		return nil, errors.New("MARKETSTACK_API_KEY is not configured")
	}
	if limit <= 0 {
		limit = 30
	}

	params := url.Values{}
	params.Set("access_key", s.apiKey)
	params.Set("symbols", symbol)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "DESC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/eod?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request eod: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read eod: %w", err)
	}

	var parsed eodResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode eod (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("marketstack %s: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketstack status %d", resp.StatusCode)
	}
	if len(parsed.Data) == 0 {
		return nil, ErrNoData
	}

	bars := make([]models.PriceBar, 0, len(parsed.Data))
	for _, b := range parsed.Data {
		date := b.Date
		if len(date) > 10 {
			date = date[:10]
		}
		bars = append(bars, models.PriceBar{
			Date:   date,
			Symbol: b.Symbol,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return bars, nil
}
