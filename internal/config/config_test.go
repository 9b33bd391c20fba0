package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/run-bigpig/stockdesk/internal/models"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	d := Defaults()
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 30, cfg.HistoryDays)
	assert.Equal(t, 100, cfg.TechnicalDays)
	assert.Equal(t, models.AIProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "gpt-4-turbo", cfg.AI.ModelName)
	assert.Equal(t, d.MarketStack.BaseURL, cfg.MarketStack.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.NoError(t, Validate(cfg))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
workers: 3
poll_interval: 500ms
ai:
  provider: Gemini
  model: gemini-2.0-flash
  api_key: file-key
search:
  max_results: 8
mcp_servers:
  - id: quotes
    name: Quotes
    transport: sse
    endpoint: http://localhost:9000/sse
    tool_filter: [quote]
    enabled: true
`)
	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, models.AIProviderGemini, cfg.AI.Provider)
	assert.Equal(t, "file-key", cfg.AI.APIKey)
	assert.Equal(t, 8, cfg.Search.MaxResults)
	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, models.MCPTransportSSE, cfg.MCPServers[0].TransportType)
	assert.Equal(t, []string{"quote"}, cfg.MCPServers[0].ToolFilter)
	require.NoError(t, Validate(cfg))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STOCKDESK_WORKERS", "7")
	t.Setenv("STOCKDESK_AI_MODEL", "gpt-4o")
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("MARKETSTACK_API_KEY", "ms-key")
	t.Setenv("TAVILY_API_KEY", "tv-key")

	cfg, err := Load(viper.New(), writeConfig(t, "workers: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "gpt-4o", cfg.AI.ModelName)
	assert.Equal(t, "env-key", cfg.AI.APIKey)
	assert.Equal(t, "ms-key", cfg.MarketStack.APIKey)
	assert.Equal(t, "tv-key", cfg.Search.TavilyAPIKey)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(viper.New(), writeConfig(t, "workers: [unterminated\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"workers":  func(c *Config) { c.Workers = 0 },
		"interval": func(c *Config) { c.PollInterval = 0 },
		"provider": func(c *Config) { c.AI.Provider = "claude" },
		"endpoint": func(c *Config) {
			c.MCPServers = []models.MCPServerConfig{{ID: "x", Enabled: true}}
		},
		"command": func(c *Config) {
			c.MCPServers = []models.MCPServerConfig{{ID: "x", TransportType: models.MCPTransportCommand, Enabled: true}}
		},
		"ai base url scheme":   func(c *Config) { c.AI.BaseURL = "ftp://api.example.com" },
		"ai base url relative": func(c *Config) { c.AI.BaseURL = "api.example.com/v1" },
		"marketstack base url": func(c *Config) { c.MarketStack.BaseURL = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	cfg := Defaults()
	cfg.MCPServers = []models.MCPServerConfig{{ID: "off"}}
	assert.NoError(t, Validate(cfg), "disabled servers are not validated")

	cfg.AI.BaseURL = "https://openrouter.ai/api/v1"
	assert.NoError(t, Validate(cfg))
}

func TestValidateCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.AI.APIKey = ""
	err := ValidateCredentials(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.AI.Provider = models.AIProviderGemini
	assert.ErrorContains(t, ValidateCredentials(cfg), "GEMINI_API_KEY")

	cfg.AI.APIKey = "sk-test"
	assert.NoError(t, ValidateCredentials(cfg))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("STOCKDESK_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("STOCKDESK_TEST_DOTENV", "")
	os.Unsetenv("STOCKDESK_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-file", os.Getenv("STOCKDESK_TEST_DOTENV"))
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))
	assert.Error(t, WriteDefaultConfig(path), "existing file is not overwritten")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Workers, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}
