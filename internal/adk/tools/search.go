package tools

import (
	"github.com/run-bigpig/stockdesk/internal/services"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// SearchWebInput 网页搜索输入参数
type SearchWebInput struct {
	Query string `json:"query" jsonschema:"search query, e.g. 'Apple earnings guidance'"`
}

// SearchWebOutput 网页搜索输出
type SearchWebOutput struct {
	Data string `json:"data" jsonschema:"search results with title, url and snippet"`
}

// createSearchWebTool 创建新闻搜索工具
func (r *Registry) createSearchWebTool() (tool.Tool, error) {
	handler := func(ctx tool.Context, input SearchWebInput) (SearchWebOutput, error) {
		log.Info("search_web query=%q", input.Query)

		if input.Query == "" {
			return SearchWebOutput{Data: "Please provide a search query."}, nil
		}
		if r.news == nil {
			return SearchWebOutput{Data: "Web search is not configured."}, nil
		}

		items, err := r.news.Search(ctx, input.Query)
		if err != nil {
			log.Warn("search_web failed: %v", err)
			return SearchWebOutput{}, err
		}

		log.Debug("search_web returned %d results", len(items))
		return SearchWebOutput{Data: services.FormatNews(items)}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "search_web",
		Description: "Search the internet for recent news, articles and information about stocks, companies and market trends.",
	}, handler)
}
