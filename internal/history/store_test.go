package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/run-bigpig/stockdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newStore(t *testing.T) *ConversationStore {
	t.Helper()
	return NewConversationStore(filepath.Join(t.TempDir(), "conversations.json"))
}

func sampleConversations() models.Conversations {
	analysis := "AAPL leads on margins."
	return models.Conversations{
		"AAPL": {
			Messages: []models.ChatMessage{
				{Role: models.RoleUser, Content: "How is Apple doing?"},
				{Role: models.RoleAssistant, Content: "Apple is doing fine."},
			},
			StockData: &models.PriceHistory{Data: []models.PriceBar{
				{Date: "2024-05-02", Symbol: "AAPL", Open: 172, High: 174, Low: 171, Close: 173.5, Volume: 1000},
			}},
			CompetitorAnalysis: &analysis,
		},
		"TSLA": {
			Messages:  []models.ChatMessage{{Role: models.RoleUser, Content: "TSLA?"}},
			StockData: &models.PriceHistory{Error: "Could not fetch data for TSLA"},
		},
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := newStore(t)
	convs := s.Load()
	require.NotNil(t, convs)
	assert.Empty(t, convs)
}

func TestLoadCorruptFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0644))
	assert.Empty(t, s.Load())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	want := sampleConversations()
	s.Save(want)

	got := s.Load()
	assert.Equal(t, want, got)
}

func TestSaveWritesOnlyPersistedFields(t *testing.T) {
	s := newStore(t)
	s.Save(sampleConversations())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"messages"`)
	assert.Contains(t, string(data), `"stock_data"`)
	assert.Contains(t, string(data), `"competitor_analysis"`)
}

func TestClearThenLoadIsEmpty(t *testing.T) {
	s := newStore(t)
	s.Save(sampleConversations())
	s.Clear()

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, s.Load())

	// 重复删除不报错
	s.Clear()
}

func TestSaveFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	s := NewConversationStore(filepath.Join(blocker, "conversations.json"))
	s.Save(sampleConversations())
	assert.Empty(t, s.Load())
}

func TestRoundTripProperty(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		s := NewConversationStore(filepath.Join(dir, "prop.json"))
		convs := make(models.Conversations)
		n := rapid.IntRange(0, 4).Draw(rt, "n")
		for i := 0; i < n; i++ {
			sym := rapid.StringMatching(`[A-Z]{1,5}`).Draw(rt, "sym")
			c := &models.Conversation{}
			msgs := rapid.IntRange(1, 3).Draw(rt, "msgs")
			for j := 0; j < msgs; j++ {
				role := rapid.SampledFrom([]string{models.RoleUser, models.RoleAssistant}).Draw(rt, "role")
				c.Append(role, rapid.String().Draw(rt, "content"))
			}
			convs[sym] = c
		}
		s.Save(convs)
		assert.Equal(rt, convs, s.Load())
	})
}

func TestSettingsDefaults(t *testing.T) {
	s := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))
	assert.True(t, s.Load().BeginnerMode)

	s.Save(models.Settings{BeginnerMode: false})
	assert.False(t, s.Load().BeginnerMode)
	assert.False(t, NewSettingsStore(s.path).Load().BeginnerMode)
}

func TestSettingsMissingFieldDefaultsTrue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))
	assert.True(t, NewSettingsStore(path).Load().BeginnerMode)
}
