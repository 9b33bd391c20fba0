package models

// AIProvider AI 服务提供商
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderGemini AIProvider = "gemini"
)

// AIConfig AI 模型配置
type AIConfig struct {
	Provider     AIProvider `mapstructure:"provider" json:"provider"`
	APIKey       string     `mapstructure:"api_key" json:"apiKey"`
	BaseURL      string     `mapstructure:"base_url" json:"baseUrl"`
	ModelName    string     `mapstructure:"model" json:"modelName"`
	NoSystemRole bool       `mapstructure:"no_system_role" json:"noSystemRole"` // 部分兼容接口不支持 system 角色
}

// MCPTransportType MCP 传输类型
type MCPTransportType string

const (
	MCPTransportHTTP    MCPTransportType = "http"
	MCPTransportSSE     MCPTransportType = "sse"
	MCPTransportCommand MCPTransportType = "command"
)

// MCPServerConfig MCP 服务器配置
type MCPServerConfig struct {
	ID            string           `mapstructure:"id" json:"id"`
	Name          string           `mapstructure:"name" json:"name"`
	TransportType MCPTransportType `mapstructure:"transport" json:"transportType"`
	Endpoint      string           `mapstructure:"endpoint" json:"endpoint"`
	Command       string           `mapstructure:"command" json:"command"`
	Args          []string         `mapstructure:"args" json:"args"`
	ToolFilter    []string         `mapstructure:"tool_filter" json:"toolFilter"`
	Enabled       bool             `mapstructure:"enabled" json:"enabled"`
}
