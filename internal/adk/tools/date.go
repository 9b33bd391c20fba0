package tools

import (
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// GetCurrentDateInput 获取当前日期输入参数
type GetCurrentDateInput struct{}

// GetCurrentDateOutput 当前日期输出
type GetCurrentDateOutput struct {
	Date string `json:"date" jsonschema:"today's date, e.g. Thursday, January 22, 2026"`
}

// createCurrentDateTool 创建当前日期工具
func (r *Registry) createCurrentDateTool() (tool.Tool, error) {
	handler := func(ctx tool.Context, input GetCurrentDateInput) (GetCurrentDateOutput, error) {
		today := r.now().Format("Monday, January 02, 2006")
		log.Debug("get_current_date -> %s", today)
		return GetCurrentDateOutput{Date: today}, nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "get_current_date",
		Description: "Get today's current date. Use this before searching for recent news so results are anchored to the current date.",
	}, handler)
}
