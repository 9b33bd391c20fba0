// Package ui 终端界面：左侧股票列表，右侧欢迎页或股票页（图表、聊天、技术分析、竞品）。
// 所有状态修改都在 Update 中完成，耗时的识别与行情获取放在 tea.Cmd 里执行。
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/run-bigpig/stockdesk/internal/logger"
	"github.com/run-bigpig/stockdesk/internal/models"
	"github.com/run-bigpig/stockdesk/internal/services"
	"github.com/run-bigpig/stockdesk/internal/session"
)

var log = logger.New("UI")

// DefaultTechnicalDays 技术分析获取的天数
const DefaultTechnicalDays = 100

// Deps 界面依赖
type Deps struct {
	State         *session.State
	Extractor     session.Extractor
	Prices        services.HistoryFetcher
	Competitors   session.CompetitorSource
	TechnicalDays int
	// MarkdownStyle glamour 内置样式名，默认 dark
	MarkdownStyle string
}

// Model 界面模型
type Model struct {
	ctx   context.Context
	deps  Deps
	state *session.State
	keys  KeyMap

	width  int
	height int

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	help     help.Model
	markdown *markdownRenderer

	resolving  bool
	refreshing bool
	adding     string

	// 上次渲染的页面，切换页面时滚动回顶部
	page string

	technical        map[string]technicalLoadedMsg
	technicalLoading map[string]bool
	peers            map[string]map[string]*models.PriceHistory
	peersLoading     map[string]bool
}

// New 创建界面模型
func New(ctx context.Context, deps Deps) *Model {
	if deps.TechnicalDays <= 0 {
		deps.TechnicalDays = DefaultTechnicalDays
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about a stock, e.g. How is Apple doing?"
	ti.Prompt = "› "
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	return &Model{
		ctx:              withContext(ctx),
		deps:             deps,
		state:            deps.State,
		keys:             DefaultKeyMap(),
		input:            ti,
		spinner:          sp,
		viewport:         viewport.New(0, 0),
		help:             help.New(),
		markdown:         newMarkdownRenderer(deps.MarkdownStyle),
		technical:        make(map[string]technicalLoadedMsg),
		technicalLoading: make(map[string]bool),
		peers:            make(map[string]map[string]*models.PriceHistory),
		peersLoading:     make(map[string]bool),
	}
}

// Init 实现 tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.evaluate())
}

// Update 实现 tea.Model，每条消息处理后都做一次完整的重新评估
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		cmds = append(cmds, m.handleKey(msg))

	case ReevaluateMsg:

	case symbolResolvedMsg:
		m.resolving = false
		m.state.AdoptQuery(msg.query, msg.symbol, msg.ok, msg.data)

	case refreshDoneMsg:
		m.refreshing = false
		m.state.ApplyRefresh(msg.histories)
		m.technical = make(map[string]technicalLoadedMsg)
		m.peers = make(map[string]map[string]*models.PriceHistory)
		log.Info("refreshed %d stocks", len(msg.histories))

	case technicalLoadedMsg:
		delete(m.technicalLoading, msg.symbol)
		m.technical[msg.symbol] = msg

	case competitorsLoadedMsg:
		delete(m.peersLoading, msg.symbol)
		m.peers[msg.symbol] = msg.histories

	case competitorAddedMsg:
		m.adding = ""
		m.state.AddCompetitor(msg.symbol, msg.data)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, m.evaluate())
	m.syncViewport()
	return m, tea.Batch(cmds...)
}

// evaluate 重新评估会话状态，并启动当前页面需要的后台加载
func (m *Model) evaluate() tea.Cmd {
	m.state.Evaluate()

	var cmds []tea.Cmd
	if m.state.NeedsSymbol() && !m.resolving {
		m.resolving = true
		cmds = append(cmds, m.resolveSymbolCmd(m.state.PendingQuery()))
	}

	sym := m.state.Selected()
	if sym == "" {
		return tea.Batch(cmds...)
	}
	switch m.state.View() {
	case session.ViewTechnical:
		if _, ok := m.technical[sym]; !ok && !m.technicalLoading[sym] {
			m.technicalLoading[sym] = true
			cmds = append(cmds, m.loadTechnicalCmd(sym))
		}
	case session.ViewCompetitors:
		peers := m.deps.Competitors.Competitors(sym, services.DefaultCompetitorLimit)
		if _, ok := m.peers[sym]; len(peers) > 0 && !ok && !m.peersLoading[sym] {
			m.peersLoading[sym] = true
			cmds = append(cmds, m.loadCompetitorsCmd(sym, peers))
		}
	}
	return tea.Batch(cmds...)
}

// inputVisible 欢迎页或尚未提问的聊天页显示输入框
func (m *Model) inputVisible() bool {
	sym := m.state.Selected()
	return sym == "" || (m.state.View() == session.ViewChat && m.state.CanAsk(sym))
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.NewChat):
		m.state.NewChat()
		m.input.Reset()
		return nil

	case key.Matches(msg, m.keys.RefreshAll):
		if m.refreshing || len(m.state.Symbols()) == 0 {
			return nil
		}
		m.refreshing = true
		return m.refreshAllCmd()

	case key.Matches(msg, m.keys.ClearAll):
		m.state.ClearAll()
		m.input.Reset()
		m.resolving = false
		m.adding = ""
		m.technical = make(map[string]technicalLoadedMsg)
		m.peers = make(map[string]map[string]*models.PriceHistory)
		return nil

	case key.Matches(msg, m.keys.ToggleMode):
		m.state.SetBeginnerMode(!m.state.BeginnerMode())
		return nil

	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
		return nil

	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
		return nil

	case key.Matches(msg, m.keys.NextTab):
		m.cycleView(1)
		return nil

	case key.Matches(msg, m.keys.PrevTab):
		m.cycleView(-1)
		return nil

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	if m.inputVisible() {
		if key.Matches(msg, m.keys.Submit) {
			m.submit()
			return nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}

	if m.state.View() == session.ViewCompetitors {
		return m.handleCompetitorKey(msg)
	}
	return nil
}

// submit 提交输入框内容
func (m *Model) submit() {
	text := m.input.Value()
	var accepted bool
	if m.state.Selected() == "" {
		accepted = m.state.SubmitQuery(text)
	} else {
		accepted = m.state.AskAboutSelected(text)
	}
	if accepted {
		m.input.Reset()
	}
}

func (m *Model) handleCompetitorKey(msg tea.KeyMsg) tea.Cmd {
	sym := m.state.Selected()
	switch {
	case key.Matches(msg, m.keys.Reanalyze):
		if !m.state.IsComparing(sym) {
			m.state.RefreshCompetitorAnalysis(sym)
		}
	case key.Matches(msg, m.keys.Competitors):
		if len(msg.Runes) == 0 {
			return nil
		}
		peers := m.deps.Competitors.Competitors(sym, services.DefaultCompetitorLimit)
		idx := int(msg.Runes[0] - '1')
		if idx < 0 || idx >= len(peers) {
			return nil
		}
		peer := peers[idx]
		if m.state.HasConversation(peer) {
			m.state.Select(peer)
			return nil
		}
		if m.adding != "" {
			return nil
		}
		m.adding = peer
		return m.addCompetitorCmd(peer)
	}
	return nil
}

// moveSelection 在股票列表中上下切换，欢迎页向下进入第一只
func (m *Model) moveSelection(delta int) {
	symbols := m.state.Symbols()
	if len(symbols) == 0 {
		return
	}
	idx := indexOf(symbols, m.state.Selected())
	switch {
	case idx < 0 && delta > 0:
		idx = 0
	case idx < 0:
		return
	default:
		idx = min(max(idx+delta, 0), len(symbols)-1)
	}
	if symbols[idx] != m.state.Selected() {
		m.state.Select(symbols[idx])
	}
}

func (m *Model) cycleView(delta int) {
	if m.state.Selected() == "" {
		return
	}
	views := m.state.Views()
	idx := 0
	for i, v := range views {
		if v == m.state.View() {
			idx = i
		}
	}
	idx = (idx + delta + len(views)) % len(views)
	m.state.SetView(views[idx])
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// mainWidth 右侧内容宽度
func (m *Model) mainWidth() int {
	return max(m.width-sidebarWidth-3, 20)
}

// syncViewport 按当前页面重排滚动区域
func (m *Model) syncViewport() {
	if m.width == 0 {
		return
	}
	header, footer := m.renderHeader(), m.renderFooter()
	m.viewport.Width = m.mainWidth()
	m.viewport.Height = max(m.height-1-lipgloss.Height(header)-lipgloss.Height(footer), 3)
	m.input.Width = max(m.mainWidth()-4, 10)

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderBody())
	page := m.state.Selected() + "/" + string(m.state.View())
	chat := m.state.View() == session.ViewChat
	switch {
	case chat && (page != m.page || atBottom):
		m.viewport.GotoBottom()
	case page != m.page:
		m.viewport.GotoTop()
	}
	m.page = page
}

// View 实现 tea.Model
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	main := lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.viewport.View(), m.renderFooter())
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderSidebar(),
		mainStyle.Width(m.mainWidth()+2).Render(main),
	)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.help.View(m.keys))
}
