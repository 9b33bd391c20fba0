package models

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 聊天消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation 单只股票的会话，按代码索引
type Conversation struct {
	Messages           []ChatMessage `json:"messages"`
	StockData          *PriceHistory `json:"stock_data"`
	CompetitorAnalysis *string       `json:"competitor_analysis"`
}

// Conversations 代码 -> 会话
type Conversations map[string]*Conversation

// NewConversation 以一条用户消息开启会话
func NewConversation(userMessage string, data *PriceHistory) *Conversation {
	return &Conversation{
		Messages:  []ChatMessage{{Role: RoleUser, Content: userMessage}},
		StockData: data,
	}
}

// Append 追加消息
func (c *Conversation) Append(role, content string) {
	c.Messages = append(c.Messages, ChatMessage{Role: role, Content: content})
}

// HasUserMessage 是否已有用户提问
func (c *Conversation) HasUserMessage() bool {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// LastMessage 最后一条消息
func (c *Conversation) LastMessage() (ChatMessage, bool) {
	if len(c.Messages) == 0 {
		return ChatMessage{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Settings 用户设置
type Settings struct {
	BeginnerMode bool `json:"beginner_mode"`
}

// DefaultSettings 默认设置
func DefaultSettings() Settings {
	return Settings{BeginnerMode: true}
}
