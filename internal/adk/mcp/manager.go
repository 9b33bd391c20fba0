// Package mcp 提供 MCP (Model Context Protocol) 集成功能
package mcp

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/run-bigpig/stockdesk/internal/logger"
	"github.com/run-bigpig/stockdesk/internal/models"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/mcptoolset"
)

var log = logger.New("MCP")

const clientVersion = "1.0.0"

// ServerStatus MCP 服务器状态
type ServerStatus struct {
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
	Error     string `json:"error"`
}

// ToolInfo MCP 工具信息
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ServerID    string `json:"serverId"`
	ServerName  string `json:"serverName"`
}

// Manager MCP 服务管理器
type Manager struct {
	mu       sync.RWMutex
	toolsets map[string]tool.Toolset
	configs  map[string]*models.MCPServerConfig
	infos    []ToolInfo
}

// NewManager 创建 MCP 管理器
func NewManager() *Manager {
	return &Manager{
		toolsets: make(map[string]tool.Toolset),
		configs:  make(map[string]*models.MCPServerConfig),
	}
}

// LoadConfigs 加载 MCP 服务器配置，单个服务器失败不影响其余服务器
func (m *Manager) LoadConfigs(configs []models.MCPServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.toolsets = make(map[string]tool.Toolset)
	m.configs = make(map[string]*models.MCPServerConfig)
	m.infos = nil

	var failed []string
	for i := range configs {
		cfg := &configs[i]
		if !cfg.Enabled {
			continue
		}
		if cfg.ID == "" {
			cfg.ID = cfg.Name
		}
		m.configs[cfg.ID] = cfg

		ts, err := mcptoolset.New(toolsetConfig(cfg))
		if err != nil {
			log.Warn("create toolset for %s failed: %v", cfg.ID, err)
			failed = append(failed, cfg.ID)
			continue
		}
		m.toolsets[cfg.ID] = ts
		log.Info("mcp server %s loaded (%s)", cfg.ID, transportName(cfg))
	}
	if len(failed) > 0 {
		return fmt.Errorf("mcp servers failed to load: %v", failed)
	}
	return nil
}

// toolsetConfig 构造 toolset 配置，空过滤列表表示不过滤
func toolsetConfig(cfg *models.MCPServerConfig) mcptoolset.Config {
	c := mcptoolset.Config{Transport: createTransport(cfg)}
	if len(cfg.ToolFilter) > 0 {
		c.ToolFilter = tool.StringPredicate(cfg.ToolFilter)
	}
	return c
}

// createTransport 根据配置创建 MCP 传输层
func createTransport(cfg *models.MCPServerConfig) mcp.Transport {
	switch cfg.TransportType {
	case models.MCPTransportSSE:
		return &mcp.SSEClientTransport{Endpoint: cfg.Endpoint}
	case models.MCPTransportCommand:
		return &mcp.CommandTransport{Command: exec.Command(cfg.Command, cfg.Args...)}
	default: // http
		return &mcp.StreamableClientTransport{Endpoint: cfg.Endpoint}
	}
}

func transportName(cfg *models.MCPServerConfig) string {
	if cfg.TransportType == "" {
		return string(models.MCPTransportHTTP)
	}
	return string(cfg.TransportType)
}

// ServerIDs 已启用服务器 ID，按字母序
func (m *Manager) ServerIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetToolset 获取指定 MCP 服务器的 toolset
func (m *Manager) GetToolset(serverID string) (tool.Toolset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.toolsets[serverID]
	return ts, ok
}

// GetAllToolsets 获取所有已启用的 toolsets
func (m *Manager) GetAllToolsets() []tool.Toolset {
	ids := m.ServerIDs()

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]tool.Toolset, 0, len(m.toolsets))
	for _, id := range ids {
		if ts, ok := m.toolsets[id]; ok {
			result = append(result, ts)
		}
	}
	return result
}

// TestConnection 测试指定 MCP 服务器的连接
func (m *Manager) TestConnection(ctx context.Context, serverID string) *ServerStatus {
	m.mu.RLock()
	cfg, ok := m.configs[serverID]
	m.mu.RUnlock()

	if !ok {
		return &ServerStatus{ID: serverID, Connected: false, Error: "server not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: cfg.Name, Version: clientVersion}, nil)
	session, err := client.Connect(ctx, createTransport(cfg), nil)
	if err != nil {
		return &ServerStatus{ID: serverID, Connected: false, Error: err.Error()}
	}
	session.Close()
	return &ServerStatus{ID: serverID, Connected: true}
}

// GetServerTools 获取指定 MCP 服务器的工具列表
func (m *Manager) GetServerTools(ctx context.Context, serverID string) ([]ToolInfo, error) {
	m.mu.RLock()
	cfg, ok := m.configs[serverID]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mcp server %q not configured", serverID)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: cfg.Name, Version: clientVersion}, nil)
	session, err := client.Connect(ctx, createTransport(cfg), nil)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	toolsResp, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, err
	}

	tools := make([]ToolInfo, 0, len(toolsResp.Tools))
	for _, t := range toolsResp.Tools {
		if len(cfg.ToolFilter) > 0 && !contains(cfg.ToolFilter, t.Name) {
			continue
		}
		tools = append(tools, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			ServerID:    serverID,
			ServerName:  cfg.Name,
		})
	}
	return tools, nil
}

// Discover 连接所有已启用服务器并缓存工具列表，供分析提示词使用
func (m *Manager) Discover(ctx context.Context) []ToolInfo {
	var all []ToolInfo
	for _, id := range m.ServerIDs() {
		tools, err := m.GetServerTools(ctx, id)
		if err != nil {
			log.Warn("list tools of %s failed: %v", id, err)
			continue
		}
		all = append(all, tools...)
	}

	m.mu.Lock()
	m.infos = all
	m.mu.Unlock()
	return all
}

// GetAllToolInfos 返回最近一次 Discover 的结果
func (m *Manager) GetAllToolInfos() []ToolInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ToolInfo(nil), m.infos...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
