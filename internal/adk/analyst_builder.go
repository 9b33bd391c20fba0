package adk

import (
	"fmt"
	"strings"

	"github.com/run-bigpig/stockdesk/internal/adk/mcp"
	"github.com/run-bigpig/stockdesk/internal/adk/tools"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"
)

// AnalystAgentName 分析 Agent 名称
const AnalystAgentName = "stock_analyst"

// AnalystAgentBuilder 分析 Agent 构建器
type AnalystAgentBuilder struct {
	llm          model.LLM
	toolRegistry *tools.Registry
	mcpManager   *mcp.Manager
	instruction  string
}

// NewAnalystAgentBuilder 创建分析 Agent 构建器，registry 与 mcpMgr 可为空
func NewAnalystAgentBuilder(llm model.LLM, instruction string, registry *tools.Registry, mcpMgr *mcp.Manager) *AnalystAgentBuilder {
	return &AnalystAgentBuilder{
		llm:          llm,
		toolRegistry: registry,
		mcpManager:   mcpMgr,
		instruction:  instruction,
	}
}

// BuildAgent 构建带全部内置工具与 MCP 工具集的 LLM Agent
func (b *AnalystAgentBuilder) BuildAgent() (agent.Agent, error) {
	var agentTools []tool.Tool
	if b.toolRegistry != nil {
		agentTools = b.toolRegistry.GetTools()
	}

	var toolsets []tool.Toolset
	if b.mcpManager != nil {
		toolsets = b.mcpManager.GetAllToolsets()
	}

	temperature := float32(0)
	return llmagent.New(llmagent.Config{
		Name:        AnalystAgentName,
		Model:       b.llm,
		Description: "Expert stock market analyst",
		Instruction: b.buildInstruction(),
		Tools:       agentTools,
		Toolsets:    toolsets,
		GenerateContentConfig: &genai.GenerateContentConfig{
			Temperature: &temperature,
		},
	})
}

// BuildPlainAgent 构建不带工具的 Agent，用于一次性的短提问
func (b *AnalystAgentBuilder) BuildPlainAgent(name, instruction string) (agent.Agent, error) {
	temperature := float32(0)
	return llmagent.New(llmagent.Config{
		Name:        name,
		Model:       b.llm,
		Instruction: instruction,
		GenerateContentConfig: &genai.GenerateContentConfig{
			Temperature: &temperature,
		},
	})
}

// buildInstruction 基础指令附上 MCP 工具说明
func (b *AnalystAgentBuilder) buildInstruction() string {
	if b.mcpManager == nil {
		return b.instruction
	}
	infos := b.mcpManager.GetAllToolInfos()
	if len(infos) == 0 {
		return b.instruction
	}

	var sb strings.Builder
	sb.WriteString(b.instruction)
	sb.WriteString("\n\nAdditional tools:\n")
	for _, info := range infos {
		fmt.Fprintf(&sb, "- %s: %s (from %s)\n", info.Name, info.Description, info.ServerName)
	}
	return sb.String()
}
