package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/run-bigpig/stockdesk/internal/models"
)

const (
	// DefaultTavilyURL Tavily 搜索接口
	DefaultTavilyURL = "https://api.tavily.com/search"
	// DefaultHTMLSearchURL 无 API Key 时使用的网页搜索
	DefaultHTMLSearchURL = "https://html.duckduckgo.com/html/"
	// DefaultMaxResults 默认返回条数
	DefaultMaxResults = 5
)

// NewsConfig 搜索服务配置
type NewsConfig struct {
	TavilyAPIKey  string
	TavilyURL     string
	HTMLSearchURL string
	MaxResults    int
	Timeout       time.Duration
}

// NewsService 新闻搜索服务
type NewsService struct {
	client        *http.Client
	apiKey        string
	tavilyURL     string
	htmlSearchURL string
	maxResults    int
}

// NewNewsService 创建新闻搜索服务
func NewNewsService(cfg NewsConfig) *NewsService {
	if cfg.TavilyURL == "" {
		cfg.TavilyURL = DefaultTavilyURL
	}
	if cfg.HTMLSearchURL == "" {
		cfg.HTMLSearchURL = DefaultHTMLSearchURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &NewsService{
		client:        &http.Client{Timeout: cfg.Timeout},
		apiKey:        cfg.TavilyAPIKey,
		tavilyURL:     cfg.TavilyURL,
		htmlSearchURL: cfg.HTMLSearchURL,
		maxResults:    cfg.MaxResults,
	}
}

// Search 搜索新闻，配置了 Tavily Key 时走 API，否则解析网页结果
func (s *NewsService) Search(ctx context.Context, query string) ([]models.NewsItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	log.Debug("searching for %q", query)
	if s.apiKey != "" {
		return s.searchTavily(ctx, query)
	}
	return s.searchHTML(ctx, query)
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Topic      string `json:"topic"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
	Detail any `json:"detail"`
}

func (s *NewsService) searchTavily(ctx context.Context, query string) ([]models.NewsItem, error) {
	payload, err := json.Marshal(tavilyRequest{
		APIKey:     s.apiKey,
		Query:      query,
		MaxResults: s.maxResults,
		Topic:      "news",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tavilyURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily status %d: %v", resp.StatusCode, parsed.Detail)
	}

	items := make([]models.NewsItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		items = append(items, models.NewsItem{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return items, nil
}

func (s *NewsService) searchHTML(ctx context.Context, query string) ([]models.NewsItem, error) {
	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.htmlSearchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var items []models.NewsItem
	doc.Find(".result").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		items = append(items, models.NewsItem{
			Title:   title,
			URL:     resolveResultURL(href),
			Content: strings.TrimSpace(sel.Find(".result__snippet").Text()),
		})
		return len(items) < s.maxResults
	})
	return items, nil
}

// resolveResultURL 还原跳转链接中的真实地址
func resolveResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

// FormatNews 格式化为给模型阅读的文本
func FormatNews(items []models.NewsItem) string {
	if len(items) == 0 {
		return "No results found."
	}
	var sb strings.Builder
	for i, it := range items {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, it.Title, it.URL)
		if it.Content != "" {
			fmt.Fprintf(&sb, "   %s\n", it.Content)
		}
	}
	return sb.String()
}
