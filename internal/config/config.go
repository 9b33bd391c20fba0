// Package config 负责 stockdesk 的配置加载与校验
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/run-bigpig/stockdesk/internal/logger"
	"github.com/run-bigpig/stockdesk/internal/models"
	"github.com/run-bigpig/stockdesk/internal/pkg/paths"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

var log = logger.New("Config")

// EnvPrefix 环境变量前缀
const EnvPrefix = "STOCKDESK"

// LocalConfigFile 当前目录下的配置文件
const LocalConfigFile = ".stockdesk/config.yaml"

// Config 应用配置
type Config struct {
	DataDir       string                   `mapstructure:"data_dir"`
	LogLevel      string                   `mapstructure:"log_level"`
	Workers       int                      `mapstructure:"workers"`
	PollInterval  time.Duration            `mapstructure:"poll_interval"`
	HistoryDays   int                      `mapstructure:"history_days"`
	TechnicalDays int                      `mapstructure:"technical_days"`
	AI            models.AIConfig          `mapstructure:"ai"`
	MarketStack   MarketStackConfig        `mapstructure:"marketstack"`
	Search        SearchConfig             `mapstructure:"search"`
	Cache         CacheConfig              `mapstructure:"cache"`
	MCPServers    []models.MCPServerConfig `mapstructure:"mcp_servers"`
}

// MarketStackConfig 行情数据源配置
type MarketStackConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SearchConfig 新闻搜索配置
type SearchConfig struct {
	TavilyAPIKey string `mapstructure:"tavily_api_key"`
	MaxResults   int    `mapstructure:"max_results"`
}

// CacheConfig 行情缓存配置
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Defaults 默认配置
func Defaults() Config {
	return Config{
		DataDir:       paths.GetDataDir(),
		LogLevel:      "info",
		Workers:       5,
		PollInterval:  2 * time.Second,
		HistoryDays:   30,
		TechnicalDays: 100,
		AI: models.AIConfig{
			Provider:  models.AIProviderOpenAI,
			ModelName: "gpt-4-turbo",
		},
		MarketStack: MarketStackConfig{BaseURL: "http://api.marketstack.com/v1"},
		Search:      SearchConfig{MaxResults: 5},
		Cache:       CacheConfig{TTL: 5 * time.Minute},
	}
}

// SetDefaults 把默认值注册到 viper，使环境变量覆盖对所有键生效
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("history_days", d.HistoryDays)
	v.SetDefault("technical_days", d.TechnicalDays)
	v.SetDefault("ai.provider", string(d.AI.Provider))
	v.SetDefault("ai.model", d.AI.ModelName)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.no_system_role", false)
	v.SetDefault("marketstack.api_key", "")
	v.SetDefault("marketstack.base_url", d.MarketStack.BaseURL)
	v.SetDefault("search.tavily_api_key", "")
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("cache.ttl", d.Cache.TTL)
}

// bindEnv 绑定环境变量，兼容常见的无前缀写法
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("marketstack.api_key", EnvPrefix+"_MARKETSTACK_API_KEY", "MARKETSTACK_API_KEY")
	_ = v.BindEnv("search.tavily_api_key", EnvPrefix+"_SEARCH_TAVILY_API_KEY", "TAVILY_API_KEY")
}

// providerKeyEnv 各提供商约定俗成的密钥环境变量
var providerKeyEnv = map[models.AIProvider]string{
	models.AIProviderOpenAI: "OPENAI_API_KEY",
	models.AIProviderGemini: "GEMINI_API_KEY",
}

// Load 读取配置
// 查找顺序：cfgFile 参数、./.stockdesk/config.yaml、~/.config/stockdesk/config.yaml；配置文件不存在时使用默认值
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	SetDefaults(v)
	bindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(LocalConfigFile); err == nil {
		v.SetConfigFile(LocalConfigFile)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "stockdesk"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			log.Info("no config file found, using defaults")
		default:
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	} else {
		log.Info("config loaded from %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.AI.Provider = models.AIProvider(strings.ToLower(string(cfg.AI.Provider)))
	if cfg.AI.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.AI.Provider]; ok {
			cfg.AI.APIKey = os.Getenv(env)
		}
	}
	return cfg, nil
}

// LoadDotEnv 加载 .env 文件，不覆盖已有环境变量，文件不存在时忽略
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := gotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
		log.Debug("environment loaded from %s", f)
	}
	return nil
}

// ValidateCredentials 启动分析前必须具备模型密钥，config 与 mcp 子命令不需要
func ValidateCredentials(cfg Config) error {
	if cfg.AI.APIKey != "" {
		return nil
	}
	if env, ok := providerKeyEnv[cfg.AI.Provider]; ok {
		return fmt.Errorf("no API key configured for provider %s: set ai.api_key or %s", cfg.AI.Provider, env)
	}
	return fmt.Errorf("no API key configured for provider %s", cfg.AI.Provider)
}

// validateBaseURL 为空表示使用默认地址，否则必须是 http(s) 绝对地址
func validateBaseURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
	}
	return nil
}

// Validate 校验配置
func Validate(cfg Config) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", cfg.PollInterval)
	}
	if cfg.HistoryDays <= 0 || cfg.TechnicalDays <= 0 {
		return fmt.Errorf("history_days and technical_days must be positive")
	}
	switch cfg.AI.Provider {
	case models.AIProviderOpenAI, models.AIProviderGemini:
	default:
		return fmt.Errorf("unknown ai.provider %q (want openai or gemini)", cfg.AI.Provider)
	}
	if err := validateBaseURL("ai.base_url", cfg.AI.BaseURL); err != nil {
		return err
	}
	if cfg.MarketStack.BaseURL == "" {
		return fmt.Errorf("marketstack.base_url is required")
	}
	if err := validateBaseURL("marketstack.base_url", cfg.MarketStack.BaseURL); err != nil {
		return err
	}
	for i, s := range cfg.MCPServers {
		if !s.Enabled {
			continue
		}
		switch s.TransportType {
		case "", models.MCPTransportHTTP, models.MCPTransportSSE:
			if s.Endpoint == "" {
				return fmt.Errorf("mcp_servers[%d]: endpoint is required", i)
			}
		case models.MCPTransportCommand:
			if s.Command == "" {
				return fmt.Errorf("mcp_servers[%d]: command is required", i)
			}
		default:
			return fmt.Errorf("mcp_servers[%d]: unknown transport %q", i, s.TransportType)
		}
	}
	return nil
}

// DefaultConfigTemplate 带注释的默认配置文件内容
func DefaultConfigTemplate() string {
	return `# stockdesk configuration

# data_dir: ~/.config/stockdesk
log_level: info

# Background analysis workers and completion poll interval
workers: 5
poll_interval: 2s

# Days of price history for the chart and technical tabs
history_days: 30
technical_days: 100

ai:
  provider: openai        # openai or gemini
  model: gpt-4-turbo
  # api_key: ""           # or OPENAI_API_KEY / GEMINI_API_KEY
  # base_url: ""          # OpenAI-compatible endpoint
  # no_system_role: false

marketstack:
  # api_key: ""           # or MARKETSTACK_API_KEY
  base_url: http://api.marketstack.com/v1

search:
  # tavily_api_key: ""    # or TAVILY_API_KEY; falls back to HTML search
  max_results: 5

cache:
  ttl: 5m

# mcp_servers:
#   - id: quotes
#     name: Quotes
#     transport: http     # http, sse or command
#     endpoint: http://localhost:9000/mcp
#     enabled: true
`
}

// WriteDefaultConfig 写入默认配置文件
func WriteDefaultConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s already exists", configPath)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	log.Info("created default config at %s", configPath)
	return nil
}
