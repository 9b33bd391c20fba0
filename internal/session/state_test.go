package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/run-bigpig/stockdesk/internal/history"
	"github.com/run-bigpig/stockdesk/internal/models"
	"github.com/run-bigpig/stockdesk/internal/services"
	"github.com/run-bigpig/stockdesk/internal/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	mu          sync.Mutex
	queries     []string
	comparisons [][]string
	reply       string
	err         error
	release     chan struct{}
}

func (f *fakeAgent) wait(ctx context.Context) {
	if f.release == nil {
		return
	}
	select {
	case <-f.release:
	case <-ctx.Done():
	}
}

func (f *fakeAgent) RunAgent(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	f.wait(ctx)
	return f.reply, f.err
}

func (f *fakeAgent) CompareCompetitors(ctx context.Context, symbol string, competitors []string) (string, error) {
	f.mu.Lock()
	f.comparisons = append(f.comparisons, competitors)
	f.mu.Unlock()
	f.wait(ctx)
	return f.reply, f.err
}

func (f *fakeAgent) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries), len(f.comparisons)
}

type fakeExtractor map[string]string

func (f fakeExtractor) ExtractSymbol(ctx context.Context, text string) (string, bool) {
	sym, ok := f[text]
	return sym, ok
}

type fakePrices struct {
	mu        sync.Mutex
	fetched   []string
	refreshed []string
	fail      map[string]bool
	close     float64
}

func (f *fakePrices) FetchHistory(ctx context.Context, symbol string, days int) *models.PriceHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, symbol)
	if f.fail[symbol] {
		return &models.PriceHistory{Error: "marketstack unavailable"}
	}
	return &models.PriceHistory{Data: []models.PriceBar{{Date: "2024-03-05", Symbol: symbol, Close: f.close}}}
}

func (f *fakePrices) Refresh(ctx context.Context, symbol string, days int) *models.PriceHistory {
	f.mu.Lock()
	f.refreshed = append(f.refreshed, symbol)
	f.mu.Unlock()
	return f.FetchHistory(ctx, symbol, days)
}

type fixture struct {
	state    *State
	agent    *fakeAgent
	prices   *fakePrices
	convs    *history.ConversationStore
	settings *history.SettingsStore
	registry *tasks.Registry
}

func newFixture(t *testing.T, agent *fakeAgent) *fixture {
	t.Helper()
	dir := t.TempDir()
	pool := tasks.NewPool(2)
	t.Cleanup(pool.Close)

	f := &fixture{
		agent:    agent,
		prices:   &fakePrices{close: 170, fail: map[string]bool{}},
		convs:    history.NewConversationStore(filepath.Join(dir, "conversations.json")),
		settings: history.NewSettingsStore(filepath.Join(dir, "settings.json")),
		registry: tasks.NewRegistry(pool),
	}
	f.state = New(Deps{
		Registry: f.registry,
		Agent:    agent,
		Extractor: fakeExtractor{
			"Analyze Apple":           "AAPL",
			"How is Apple doing now?": "AAPL",
			"Should I buy Tesla?":     "TSLA",
		},
		Prices:        f.prices,
		Competitors:   services.NewCompetitorServiceWith(map[string][]string{"AAPL": {"MSFT", "GOOGL"}}),
		Conversations: f.convs,
		Settings:      f.settings,
	})
	return f
}

// settle 等待任务完成并合并结果
func (f *fixture) settle(t *testing.T, want int) {
	t.Helper()
	got := 0
	require.Eventually(t, func() bool {
		got += f.state.ReconcileAll()
		return got >= want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAnalyzeAppleScenario(t *testing.T) {
	f := newFixture(t, &fakeAgent{reply: "Apple looks steady.\n\n## 🎓 Beginner Summary\nHold."})
	s := f.state

	require.True(t, s.SubmitQuery("Analyze Apple"))
	sym, ok := s.ProcessNewStockQuery(context.Background())
	require.True(t, ok)
	assert.Equal(t, "AAPL", sym)
	assert.Equal(t, "AAPL", s.Selected())
	assert.Equal(t, ViewChat, s.View())

	conv, ok := s.Conversation("AAPL")
	require.True(t, ok)
	require.NotNil(t, conv.StockData)
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleUser, Content: "Analyze Apple"}}, conv.Messages)

	assert.True(t, s.Evaluate())
	assert.True(t, s.IsAnalyzing("AAPL"))
	assert.Empty(t, s.PendingQuery())

	f.settle(t, 1)
	assert.False(t, s.IsAnalyzing("AAPL"))
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, models.RoleAssistant, conv.Messages[1].Role)
	assert.Contains(t, conv.Messages[1].Content, "Apple looks steady.")
	assert.Equal(t, []string{"The user is asking about AAPL. Analyze Apple"}, f.agent.queries)

	persisted := f.convs.Load()
	require.Contains(t, persisted, "AAPL")
	assert.Equal(t, conv.Messages, persisted["AAPL"].Messages)

	assert.Equal(t, "## 🎓 Beginner Summary\nHold.", s.Present(conv.Messages[1].Content))
	s.SetBeginnerMode(false)
	assert.Equal(t, "Apple looks steady.", s.Present(conv.Messages[1].Content))
}

func TestAnalyzeAppleNetworkFault(t *testing.T) {
	f := newFixture(t, &fakeAgent{err: errors.New("dial tcp: connection refused")})
	s := f.state

	s.SubmitQuery("Analyze Apple")
	_, ok := s.ProcessNewStockQuery(context.Background())
	require.True(t, ok)
	s.Evaluate()
	f.settle(t, 1)

	conv, _ := s.Conversation("AAPL")
	last, ok := conv.LastMessage()
	require.True(t, ok)
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.Equal(t, "Sorry, I encountered an error: dial tcp: connection refused", last.Content)
	assert.Equal(t, last, f.convs.Load()["AAPL"].Messages[1])
}

func TestNoSymbolDetected(t *testing.T) {
	f := newFixture(t, &fakeAgent{})
	s := f.state

	s.SubmitQuery("what's the weather?")
	_, ok := s.ProcessNewStockQuery(context.Background())
	assert.False(t, ok)
	assert.Empty(t, s.Symbols())
	assert.Empty(t, s.PendingQuery())
	assert.Equal(t, ExtractionWarning, s.Warning())
	assert.Empty(t, s.Selected())
	assert.Empty(t, f.convs.Load())
	assert.Empty(t, f.prices.fetched)
}

func TestRepeatedEvaluateSubmitsOnce(t *testing.T) {
	agent := &fakeAgent{reply: "done", release: make(chan struct{})}
	f := newFixture(t, agent)
	s := f.state

	s.SubmitQuery("Analyze Apple")
	s.ProcessNewStockQuery(context.Background())
	for i := 0; i < 50; i++ {
		s.Evaluate()
	}
	require.Eventually(t, func() bool {
		n, _ := agent.calls()
		return n == 1
	}, time.Second, 5*time.Millisecond)

	// 同一股票再次提问时保留为待处理，直到前一个结果取走
	s.SubmitQuery("How is Apple doing now?")
	_, ok := s.ProcessNewStockQuery(context.Background())
	require.True(t, ok)
	assert.False(t, s.Evaluate())
	assert.Empty(t, s.PendingQuery())
	assert.Equal(t, []string{"How is Apple doing now?"}, s.Queued("AAPL"))

	close(agent.release)
	conv, _ := s.Conversation("AAPL")
	require.Eventually(t, func() bool {
		s.Evaluate()
		return len(conv.Messages) == 4
	}, 2*time.Second, 5*time.Millisecond)
	n, _ := agent.calls()
	assert.Equal(t, 2, n)

	roles := make([]string, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"user", "user", "assistant", "assistant"}, roles)
	assert.Empty(t, s.Queued("AAPL"))
}

// TestQueuedFollowUpSurvivesNewQuery 排队中的追问不会被欢迎页的新提问覆盖
func TestQueuedFollowUpSurvivesNewQuery(t *testing.T) {
	agent := &fakeAgent{reply: "done", release: make(chan struct{})}
	f := newFixture(t, agent)
	s := f.state

	s.SubmitQuery("Analyze Apple")
	s.ProcessNewStockQuery(context.Background())
	require.True(t, s.Evaluate())

	s.SubmitQuery("How is Apple doing now?")
	_, ok := s.ProcessNewStockQuery(context.Background())
	require.True(t, ok)
	s.Evaluate()

	s.NewChat()
	require.True(t, s.SubmitQuery("Should I buy Tesla?"))
	sym, ok := s.ProcessNewStockQuery(context.Background())
	require.True(t, ok)
	assert.Equal(t, "TSLA", sym)
	assert.Equal(t, []string{"How is Apple doing now?"}, s.Queued("AAPL"))
	require.True(t, s.Evaluate())

	close(agent.release)
	aapl, _ := s.Conversation("AAPL")
	tsla, _ := s.Conversation("TSLA")
	require.Eventually(t, func() bool {
		s.Evaluate()
		return len(aapl.Messages) == 4 && len(tsla.Messages) == 2
	}, 2*time.Second, 5*time.Millisecond)

	roles := make([]string, 0, len(aapl.Messages))
	for _, m := range aapl.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"user", "user", "assistant", "assistant"}, roles)

	agent.mu.Lock()
	defer agent.mu.Unlock()
	assert.ElementsMatch(t, []string{
		"The user is asking about AAPL. Analyze Apple",
		"The user is asking about AAPL. How is Apple doing now?",
		"The user is asking about TSLA. Should I buy Tesla?",
	}, agent.queries)
}

func TestAskAboutSelectedOnlyOnce(t *testing.T) {
	f := newFixture(t, &fakeAgent{reply: "ok"})
	s := f.state

	assert.True(t, s.AddCompetitor("MSFT", nil))
	f.settle(t, 1)

	assert.False(t, s.CanAsk("MSFT"), "quick analysis already asked a question")
	assert.False(t, s.AskAboutSelected("and the dividend?"))
	assert.False(t, s.CanAsk("NFLX"))
}

func TestAddCompetitor(t *testing.T) {
	f := newFixture(t, &fakeAgent{reply: "MSFT is solid."})
	s := f.state
	data := &models.PriceHistory{Data: []models.PriceBar{{Date: "2024-03-05", Symbol: "MSFT", Close: 400}}}

	assert.True(t, s.AddCompetitor("MSFT", data))
	assert.Equal(t, "MSFT", s.Selected())
	assert.True(t, s.IsAnalyzing("MSFT"))

	conv, ok := s.Conversation("MSFT")
	require.True(t, ok)
	assert.Equal(t, "Give me a quick analysis of MSFT", conv.Messages[0].Content)
	assert.Same(t, data, conv.StockData)

	f.settle(t, 1)
	assert.Len(t, conv.Messages, 2)

	s.NewChat()
	assert.False(t, s.AddCompetitor("MSFT", nil), "already tracked: only switches")
	assert.Equal(t, "MSFT", s.Selected())
	assert.Len(t, conv.Messages, 2)
}

func TestCompetitorAnalysisLifecycle(t *testing.T) {
	agent := &fakeAgent{reply: "MSFT ranks first."}
	f := newFixture(t, agent)
	s := f.state

	s.SubmitQuery("Analyze Apple")
	s.ProcessNewStockQuery(context.Background())
	s.ProcessPendingQuery()
	f.settle(t, 1)

	s.SetView(ViewCompetitors)
	assert.True(t, s.Evaluate())
	assert.False(t, s.EnsureCompetitorAnalysis("AAPL"), "already in flight")
	assert.True(t, s.IsComparing("AAPL"))

	f.settle(t, 1)
	conv, _ := s.Conversation("AAPL")
	require.NotNil(t, conv.CompetitorAnalysis)
	assert.Equal(t, "MSFT ranks first.", *conv.CompetitorAnalysis)
	_, comparisons := agent.calls()
	assert.Equal(t, 1, comparisons)
	assert.Equal(t, []string{"MSFT", "GOOGL"}, agent.comparisons[0])
	assert.False(t, s.Evaluate(), "saved analysis is not regenerated")

	s.RefreshCompetitorAnalysis("AAPL")
	assert.Nil(t, conv.CompetitorAnalysis)
	assert.Nil(t, f.convs.Load()["AAPL"].CompetitorAnalysis)
	assert.True(t, s.Evaluate())
	f.settle(t, 1)
	_, comparisons = agent.calls()
	assert.Equal(t, 2, comparisons)

	assert.False(t, s.EnsureCompetitorAnalysis("ZZZZ"), "untracked symbol")
}

func TestRefreshAll(t *testing.T) {
	f := newFixture(t, &fakeAgent{reply: "ok"})
	s := f.state
	s.SubmitQuery("Analyze Apple")
	s.ProcessNewStockQuery(context.Background())
	s.SubmitQuery("Should I buy Tesla?")
	s.ProcessNewStockQuery(context.Background())

	f.prices.close = 180
	f.prices.fail["TSLA"] = true
	s.RefreshAll(context.Background())
	assert.ElementsMatch(t, []string{"AAPL", "TSLA"}, f.prices.refreshed)

	aapl, _ := s.Conversation("AAPL")
	bar, ok := aapl.StockData.Latest()
	require.True(t, ok)
	assert.Equal(t, 180.0, bar.Close)

	tsla, _ := s.Conversation("TSLA")
	assert.Equal(t, "marketstack unavailable", tsla.StockData.Error)
	assert.Equal(t, "marketstack unavailable", f.convs.Load()["TSLA"].StockData.Error)
}

func TestClearAll(t *testing.T) {
	agent := &fakeAgent{reply: "late", release: make(chan struct{})}
	f := newFixture(t, agent)
	s := f.state

	s.SubmitQuery("Analyze Apple")
	s.ProcessNewStockQuery(context.Background())
	s.Evaluate()
	require.True(t, s.IsAnalyzing("AAPL"))

	s.ClearAll()
	assert.Empty(t, s.Symbols())
	assert.Empty(t, s.Selected())
	assert.Equal(t, ViewChat, s.View())
	assert.Empty(t, s.PendingQuery())
	assert.Zero(t, f.registry.Len())
	assert.Empty(t, f.convs.Load())

	close(agent.release)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, s.ReconcileAll())
	assert.Empty(t, s.Symbols())
}

func TestBeginnerModePersisted(t *testing.T) {
	f := newFixture(t, &fakeAgent{})
	s := f.state
	assert.True(t, s.BeginnerMode())
	assert.Len(t, s.Views(), 3)

	s.SetView(ViewTechnical)
	assert.Equal(t, ViewChart, s.View())

	s.SetBeginnerMode(false)
	s.SetView(ViewTechnical)
	assert.Equal(t, ViewTechnical, s.View())
	assert.False(t, f.settings.Load().BeginnerMode)

	s.SetBeginnerMode(true)
	assert.Equal(t, ViewChart, s.View())

	reloaded := New(Deps{
		Registry:      f.registry,
		Agent:         f.agent,
		Extractor:     fakeExtractor{},
		Prices:        f.prices,
		Competitors:   services.NewCompetitorServiceWith(nil),
		Conversations: f.convs,
		Settings:      f.settings,
	})
	assert.True(t, reloaded.BeginnerMode())
}

func TestStaleSymbolLookupIgnored(t *testing.T) {
	f := newFixture(t, &fakeAgent{})
	s := f.state

	s.SubmitQuery("Analyze Apple")
	s.SubmitQuery("Should I buy Tesla?")
	assert.False(t, s.AdoptQuery("Analyze Apple", "AAPL", true, nil))
	assert.Empty(t, s.Symbols())

	assert.True(t, s.AdoptQuery("Should I buy Tesla?", "TSLA", true, nil))
	assert.Equal(t, []string{"TSLA"}, s.Symbols())
	assert.False(t, s.NeedsSymbol())
}
