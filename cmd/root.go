package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/run-bigpig/stockdesk/internal/adk"
	"github.com/run-bigpig/stockdesk/internal/adk/mcp"
	"github.com/run-bigpig/stockdesk/internal/adk/tools"
	"github.com/run-bigpig/stockdesk/internal/config"
	"github.com/run-bigpig/stockdesk/internal/history"
	"github.com/run-bigpig/stockdesk/internal/logger"
	"github.com/run-bigpig/stockdesk/internal/pkg/paths"
	"github.com/run-bigpig/stockdesk/internal/reasoning"
	"github.com/run-bigpig/stockdesk/internal/services"
	"github.com/run-bigpig/stockdesk/internal/session"
	"github.com/run-bigpig/stockdesk/internal/tasks"
	"github.com/run-bigpig/stockdesk/internal/ui"
)

var log = logger.New("Main")

func init() {
	// 在程序启动前查询终端背景色，避免 OSC 11 应答混入输入框
	_ = lipgloss.HasDarkBackground()
}

// discoverTimeout 启动时枚举 MCP 工具的超时
const discoverTimeout = 15 * time.Second

var (
	version = "dev"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:     "stockdesk",
	Short:   "A terminal stock research desk backed by an AI analyst",
	Long:    `Ask about any stock in plain language. Each stock gets its own chat, chart, technical and competitor tabs, and analyses run in the background.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.stockdesk/config.yaml or ~/.config/stockdesk/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for conversations, settings, cache and logs")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.Flags().Bool("beginner", false, "start in beginner mode; --beginner=false forces full mode")
}

// loadConfig 加载 .env 与配置文件，命令行参数优先
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	v := viper.New()
	_ = v.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))
	_ = v.BindPFlag("log_level", cmd.Flags().Lookup("log-level"))

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// beginnerFlag 命令行显式给出 --beginner 时返回其值，未给出时沿用保存的设置
func beginnerFlag(cmd *cobra.Command) (on, ok bool) {
	if !cmd.Flags().Changed("beginner") {
		return false, false
	}
	on, err := cmd.Flags().GetBool("beginner")
	return on, err == nil
}

func runApp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.ValidateCredentials(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logger.Init(paths.LogFile(cfg.DataDir), logger.ParseLevel(cfg.LogLevel)); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Error("startup failed: %v", err)
		return err
	}
	defer a.Close()

	if on, ok := beginnerFlag(cmd); ok {
		a.state.SetBeginnerMode(on)
	}

	p := tea.NewProgram(a.model, tea.WithAltScreen(), tea.WithContext(ctx))
	a.poller = tasks.NewPoller(a.registry, cfg.PollInterval, func() {
		p.Send(ui.ReevaluateMsg{})
	})
	a.poller.Start(ctx)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// app 一次运行所需的全部组件
type app struct {
	pool     *tasks.Pool
	registry *tasks.Registry
	poller   *tasks.Poller
	state    *session.State
	model    *ui.Model
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	market := services.NewMarketService(services.MarketConfig{
		BaseURL:  cfg.MarketStack.BaseURL,
		APIKey:   cfg.MarketStack.APIKey,
		CacheTTL: cfg.Cache.TTL,
		CacheDir: paths.EnsureCacheDir(cfg.DataDir, "prices"),
	})
	news := services.NewNewsService(services.NewsConfig{
		TavilyAPIKey: cfg.Search.TavilyAPIKey,
		MaxResults:   cfg.Search.MaxResults,
	})

	mcpMgr := mcp.NewManager()
	if err := mcpMgr.LoadConfigs(cfg.MCPServers); err != nil {
		log.Warn("some MCP servers were skipped: %v", err)
	}
	if len(mcpMgr.ServerIDs()) > 0 {
		dctx, cancel := context.WithTimeout(ctx, discoverTimeout)
		infos := mcpMgr.Discover(dctx)
		cancel()
		log.Info("discovered %d MCP tools", len(infos))
	}

	llm, err := adk.NewModel(ctx, cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("creating %s model: %w", cfg.AI.Provider, err)
	}
	analyst, err := reasoning.NewAnalyst(llm, tools.NewRegistry(market, news), mcpMgr)
	if err != nil {
		return nil, fmt.Errorf("creating analyst: %w", err)
	}
	extractor := reasoning.NewSymbolExtractor(llm)
	competitors := services.NewCompetitorService()

	pool := tasks.NewPool(cfg.Workers)
	registry := tasks.NewRegistry(pool)
	state := session.New(session.Deps{
		Registry:      registry,
		Agent:         analyst,
		Extractor:     extractor,
		Prices:        market,
		Competitors:   competitors,
		Conversations: history.NewConversationStore(paths.ConversationsFile(cfg.DataDir)),
		Settings:      history.NewSettingsStore(paths.SettingsFile(cfg.DataDir)),
		HistoryDays:   cfg.HistoryDays,
	})

	return &app{
		pool:     pool,
		registry: registry,
		state:    state,
		model: ui.New(ctx, ui.Deps{
			State:         state,
			Extractor:     extractor,
			Prices:        market,
			Competitors:   competitors,
			TechnicalDays: cfg.TechnicalDays,
		}),
	}, nil
}

// Close 停止轮询并关闭工作池，排队中的任务以失败结束
func (a *app) Close() {
	if a.poller != nil {
		a.poller.Stop()
	}
	if n := a.pool.Queued(); n > 0 {
		log.Info("cancelling %d queued tasks", n)
	}
	a.pool.Close()
	if keys := a.registry.Keys(); len(keys) > 0 {
		log.Info("stopped with unresolved tasks: %s", strings.Join(keys, ", "))
	}
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion 设置版本号
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
