// Package session 单个交互会话的全部可变状态：选中的股票、待处理的提问、
// 新手模式开关，以及与任务登记表和会话存储之间的协调。
// 除 New 之外的方法都应在交互线程（界面的 Update 循环）上调用。
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/run-bigpig/stockdesk/internal/logger"
	"github.com/run-bigpig/stockdesk/internal/models"
	"github.com/run-bigpig/stockdesk/internal/reasoning"
	"github.com/run-bigpig/stockdesk/internal/services"
	"github.com/run-bigpig/stockdesk/internal/tasks"
)

var log = logger.New("Session")

// ExtractionWarning 未识别出股票代码时的提示
const ExtractionWarning = "I couldn't detect a stock symbol in your question. Please mention a stock like 'NVDA', 'Apple', or 'Tesla'."

// DefaultHistoryDays 新建会话时获取的价格天数
const DefaultHistoryDays = 30

// View 股票页当前标签
type View string

const (
	ViewChart       View = "chart"
	ViewChat        View = "chat"
	ViewTechnical   View = "technical"
	ViewCompetitors View = "competitors"
)

// Extractor 从自然语言中识别股票代码
type Extractor interface {
	ExtractSymbol(ctx context.Context, text string) (string, bool)
}

// CompetitorSource 竞品表
type CompetitorSource interface {
	Competitors(symbol string, limit int) []string
}

// ConversationStore 会话持久化
type ConversationStore interface {
	Load() models.Conversations
	Save(convs models.Conversations)
	Clear()
}

// SettingsStore 设置持久化
type SettingsStore interface {
	Load() models.Settings
	Save(settings models.Settings)
}

// Deps 会话依赖
type Deps struct {
	Registry      *tasks.Registry
	Agent         tasks.Agent
	Extractor     Extractor
	Prices        services.HistoryFetcher
	Competitors   CompetitorSource
	Conversations ConversationStore
	Settings      SettingsStore
	HistoryDays   int
}

// State 会话状态
type State struct {
	deps Deps

	conversations models.Conversations
	selected      string
	view          View
	beginnerMode  bool
	warning       string

	// 还未识别出股票代码的提问
	pendingQuery string
	// 已确定股票、等待提交的提问，每只股票按提问顺序排队
	queued map[string][]string
}

// New 创建会话，加载已保存的会话与设置
func New(deps Deps) *State {
	if deps.HistoryDays <= 0 {
		deps.HistoryDays = DefaultHistoryDays
	}
	s := &State{
		deps:          deps,
		conversations: deps.Conversations.Load(),
		view:          ViewChat,
		beginnerMode:  deps.Settings.Load().BeginnerMode,
		queued:        make(map[string][]string),
	}
	log.Info("session started with %d conversations, beginner mode %v", len(s.conversations), s.beginnerMode)
	return s
}

// Symbols 已跟踪的股票，按字母序
func (s *State) Symbols() []string {
	out := make([]string, 0, len(s.conversations))
	for sym := range s.conversations {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Conversation 获取会话
func (s *State) Conversation(symbol string) (*models.Conversation, bool) {
	c, ok := s.conversations[symbol]
	return c, ok
}

// Selected 当前选中的股票，空表示欢迎页
func (s *State) Selected() string { return s.selected }

// View 当前标签
func (s *State) View() View { return s.view }

// BeginnerMode 是否为新手模式
func (s *State) BeginnerMode() bool { return s.beginnerMode }

// PendingQuery 等待识别股票代码的提问
func (s *State) PendingQuery() string { return s.pendingQuery }

// Queued 该股票排队等待提交的提问
func (s *State) Queued(symbol string) []string {
	return append([]string(nil), s.queued[symbol]...)
}

// Warning 最近一次提示，读取后由调用方决定何时清除
func (s *State) Warning() string { return s.warning }

// DismissWarning 清除提示
func (s *State) DismissWarning() { s.warning = "" }

// Select 切换到某只股票的聊天页
func (s *State) Select(symbol string) {
	s.selected = symbol
	s.view = ViewChat
}

// NewChat 回到欢迎页
func (s *State) NewChat() {
	s.selected = ""
	s.view = ViewChat
}

// SetView 切换标签，新手模式下没有技术分析页
func (s *State) SetView(v View) {
	if v == ViewTechnical && s.beginnerMode {
		v = ViewChart
	}
	s.view = v
}

// Views 当前模式可用的标签
func (s *State) Views() []View {
	if s.beginnerMode {
		return []View{ViewChart, ViewChat, ViewCompetitors}
	}
	return []View{ViewChart, ViewChat, ViewTechnical, ViewCompetitors}
}

// SetBeginnerMode 切换新手模式并保存
func (s *State) SetBeginnerMode(on bool) {
	if s.beginnerMode == on {
		return
	}
	s.beginnerMode = on
	if on && s.view == ViewTechnical {
		s.view = ViewChart
	}
	s.deps.Settings.Save(models.Settings{BeginnerMode: on})
}

// Present 按当前模式过滤助手回复
func (s *State) Present(text string) string {
	return reasoning.Filter(text, s.beginnerMode)
}

// IsAnalyzing 该股票是否有分析任务在途
func (s *State) IsAnalyzing(symbol string) bool {
	return s.deps.Registry.InFlight(tasks.AnalysisKey(symbol))
}

// IsComparing 该股票是否有竞品对比任务在途
func (s *State) IsComparing(symbol string) bool {
	return s.deps.Registry.InFlight(tasks.CompetitorKey(symbol))
}

// HasConversation 是否已跟踪该股票
func (s *State) HasConversation(symbol string) bool {
	_, ok := s.conversations[symbol]
	return ok
}

// save 每次修改后同步保存
func (s *State) save() {
	s.deps.Conversations.Save(s.conversations)
}

// SubmitQuery 欢迎页提交的提问，等待识别股票代码
func (s *State) SubmitQuery(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	s.pendingQuery = text
	s.warning = ""
	return true
}

// CanAsk 选中股票的聊天页是否还能输入，只有首次提问前可以
func (s *State) CanAsk(symbol string) bool {
	c, ok := s.conversations[symbol]
	return ok && !c.HasUserMessage()
}

// AskAboutSelected 在选中股票的聊天页提问
func (s *State) AskAboutSelected(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || !s.CanAsk(s.selected) {
		return false
	}
	s.conversations[s.selected].Append(models.RoleUser, text)
	s.save()
	s.queued[s.selected] = append(s.queued[s.selected], text)
	return true
}

// NeedsSymbol 是否有待识别股票代码的提问
func (s *State) NeedsSymbol() bool {
	return s.pendingQuery != ""
}

// AdoptQuery 应用股票代码识别的结果。
// 识别失败时清除待处理提问并给出提示；成功时创建或追加会话并切换到该股票。
// data 只在新建会话时使用。query 与当前待处理提问不一致时视为过期结果，忽略。
func (s *State) AdoptQuery(query, symbol string, ok bool, data *models.PriceHistory) bool {
	if query == "" || query != s.pendingQuery {
		log.Debug("ignoring stale symbol lookup for %q", query)
		return false
	}
	if !ok {
		s.pendingQuery = ""
		s.warning = ExtractionWarning
		log.Info("no symbol detected in %q", query)
		return false
	}

	if c, exists := s.conversations[symbol]; exists {
		c.Append(models.RoleUser, query)
	} else {
		s.conversations[symbol] = models.NewConversation(query, data)
	}
	s.save()
	s.pendingQuery = ""
	s.queued[symbol] = append(s.queued[symbol], query)
	s.Select(symbol)
	log.Info("query routed to %s", symbol)
	return true
}

// ProcessNewStockQuery 同步完成股票识别与价格获取，返回识别出的代码
func (s *State) ProcessNewStockQuery(ctx context.Context) (string, bool) {
	if !s.NeedsSymbol() {
		return "", false
	}
	query := s.pendingQuery
	symbol, ok := s.deps.Extractor.ExtractSymbol(ctx, query)
	var data *models.PriceHistory
	if ok && !s.HasConversation(symbol) {
		data = s.deps.Prices.FetchHistory(ctx, symbol, s.deps.HistoryDays)
	}
	if !s.AdoptQuery(query, symbol, ok, data) {
		return "", false
	}
	return symbol, true
}

// ProcessPendingQuery 提交每只股票队首的提问。
// 该股票已有任务在途时提问留在队列里，等任务结果取走后再提交。
func (s *State) ProcessPendingQuery() bool {
	symbols := make([]string, 0, len(s.queued))
	for sym := range s.queued {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	submitted := false
	for _, symbol := range symbols {
		queue := s.queued[symbol]
		if !s.deps.Registry.Submit(tasks.AnalysisKey(symbol), tasks.AnalysisJob(s.deps.Agent, symbol, queue[0])) {
			log.Debug("analysis for %s already in flight, %d queries queued", symbol, len(queue))
			continue
		}
		if len(queue) == 1 {
			delete(s.queued, symbol)
		} else {
			s.queued[symbol] = queue[1:]
		}
		submitted = true
	}
	return submitted
}

// Reconcile 取走 key 的已完成结果并合并进会话，每个结果只合并一次
func (s *State) Reconcile(key string) bool {
	res, err := s.deps.Registry.Resolve(key)
	if err != nil {
		return false
	}
	symbol, competitor := tasks.ParseKey(key)
	c, ok := s.conversations[symbol]
	if !ok {
		log.Warn("dropping result for %s: conversation no longer exists", key)
		return false
	}

	if competitor {
		text := res.Response
		c.CompetitorAnalysis = &text
	} else {
		c.Append(models.RoleAssistant, res.Response)
	}
	s.save()
	log.Info("reconciled %s (%s)", key, res.Status)
	return true
}

// ReconcileAll 合并所有已完成的任务，返回合并数量
func (s *State) ReconcileAll() int {
	keys := make([]string, 0)
	for key := range s.deps.Registry.CompletedKeys() {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	n := 0
	for _, key := range keys {
		if s.Reconcile(key) {
			n++
		}
	}
	return n
}

// EnsureCompetitorAnalysis 没有保存的对比结果且没有在途任务时启动竞品对比
func (s *State) EnsureCompetitorAnalysis(symbol string) bool {
	c, ok := s.conversations[symbol]
	if !ok || c.CompetitorAnalysis != nil {
		return false
	}
	peers := s.deps.Competitors.Competitors(symbol, services.DefaultCompetitorLimit)
	if len(peers) == 0 {
		return false
	}
	return s.deps.Registry.Submit(tasks.CompetitorKey(symbol), tasks.CompetitorJob(s.deps.Agent, symbol, peers))
}

// RefreshCompetitorAnalysis 清除保存的对比结果，下次进入竞品页重新生成
func (s *State) RefreshCompetitorAnalysis(symbol string) {
	c, ok := s.conversations[symbol]
	if !ok || c.CompetitorAnalysis == nil {
		return
	}
	c.CompetitorAnalysis = nil
	s.save()
}

// QuickAnalysisQuery 添加竞品时的默认提问
func QuickAnalysisQuery(symbol string) string {
	return fmt.Sprintf("Give me a quick analysis of %s", symbol)
}

// AddCompetitor 把竞品加入跟踪并开始分析；已跟踪时只切换过去
func (s *State) AddCompetitor(symbol string, data *models.PriceHistory) bool {
	defer s.Select(symbol)
	if s.HasConversation(symbol) {
		return false
	}
	query := QuickAnalysisQuery(symbol)
	s.conversations[symbol] = models.NewConversation(query, data)
	s.save()
	s.deps.Registry.Submit(tasks.AnalysisKey(symbol), tasks.AnalysisJob(s.deps.Agent, symbol, query))
	return true
}

// Evaluate 一次完整的重新评估：合并已完成结果、提交待处理提问、
// 竞品页自动启动对比。可以在每次交互和每次轮询后反复调用。
func (s *State) Evaluate() bool {
	changed := s.ReconcileAll() > 0
	if s.ProcessPendingQuery() {
		changed = true
	}
	if s.selected != "" && s.view == ViewCompetitors && s.EnsureCompetitorAnalysis(s.selected) {
		changed = true
	}
	return changed
}

// ApplyRefresh 写入刷新后的价格数据，只更新已跟踪的股票
func (s *State) ApplyRefresh(histories map[string]*models.PriceHistory) {
	for sym, h := range histories {
		if c, ok := s.conversations[sym]; ok {
			c.StockData = h
		}
	}
	s.save()
}

// RefreshAll 同步刷新所有跟踪股票的价格数据
func (s *State) RefreshAll(ctx context.Context) {
	histories := services.RefreshHistories(ctx, s.deps.Prices, s.Symbols(), s.deps.HistoryDays, services.DefaultRefreshConcurrency)
	s.ApplyRefresh(histories)
}

// SetStockData 更新单只股票的价格数据
func (s *State) SetStockData(symbol string, data *models.PriceHistory) {
	if c, ok := s.conversations[symbol]; ok {
		c.StockData = data
		s.save()
	}
}

// ClearAll 清空会话、选择、待处理提问和任务，并删除保存的文件。
// 执行中的任务会跑完，但结果不再合并。
func (s *State) ClearAll() {
	s.conversations = make(models.Conversations)
	s.selected = ""
	s.view = ViewChat
	s.pendingQuery = ""
	s.queued = make(map[string][]string)
	s.warning = ""
	s.deps.Registry.Reset()
	s.deps.Conversations.Clear()
	log.Info("session cleared")
}

// HistoryDays 新建会话获取的天数
func (s *State) HistoryDays() int { return s.deps.HistoryDays }
