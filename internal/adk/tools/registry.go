// Package tools 提供给分析 Agent 的内置工具
package tools

import (
	"context"
	"time"

	"github.com/run-bigpig/stockdesk/internal/logger"
	"github.com/run-bigpig/stockdesk/internal/models"

	"google.golang.org/adk/tool"
)

var log = logger.New("Tools")

// MarketData 行情数据来源
type MarketData interface {
	FetchHistory(ctx context.Context, symbol string, days int) *models.PriceHistory
	LatestQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// NewsSearcher 新闻搜索
type NewsSearcher interface {
	Search(ctx context.Context, query string) ([]models.NewsItem, error)
}

// ToolInfo 工具信息
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry 工具注册表
type Registry struct {
	market MarketData
	news   NewsSearcher
	now    func() time.Time

	tools map[string]tool.Tool
	infos []ToolInfo
}

// NewRegistry 创建工具注册表并注册全部内置工具
func NewRegistry(market MarketData, news NewsSearcher) *Registry {
	r := &Registry{
		market: market,
		news:   news,
		now:    time.Now,
		tools:  make(map[string]tool.Tool),
	}
	r.registerAll()
	return r
}

func (r *Registry) registerAll() {
	creators := []func() (tool.Tool, error){
		r.createCurrentDateTool,
		r.createSearchWebTool,
		r.createStockInfoTool,
		r.createPriceHistoryTool,
	}
	for _, create := range creators {
		t, err := create()
		if err != nil {
			log.Error("create tool: %v", err)
			continue
		}
		r.tools[t.Name()] = t
		r.infos = append(r.infos, ToolInfo{Name: t.Name(), Description: t.Description()})
	}
}

// GetTool 按名称获取工具
func (r *Registry) GetTool(name string) (tool.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// GetTools 按名称列表获取工具，名称为空时返回全部
func (r *Registry) GetTools(names ...string) []tool.Tool {
	if len(names) == 0 {
		names = r.Names()
	}
	var result []tool.Tool
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			result = append(result, t)
		}
	}
	return result
}

// Names 已注册的工具名称，按注册顺序
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.infos))
	for _, info := range r.infos {
		names = append(names, info.Name)
	}
	return names
}

// GetToolInfos 全部工具信息
func (r *Registry) GetToolInfos() []ToolInfo {
	out := make([]ToolInfo, len(r.infos))
	copy(out, r.infos)
	return out
}
