package reasoning

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/run-bigpig/stockdesk/internal/adk"
	"github.com/run-bigpig/stockdesk/internal/adk/mcp"
	"github.com/run-bigpig/stockdesk/internal/adk/tools"
	"github.com/run-bigpig/stockdesk/internal/logger"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

var log = logger.New("Reasoning")

const (
	appName = "stockdesk"
	userID  = "user"
)

// 超时与重试配置
const (
	AgentTimeout    = 3 * time.Minute // 单次分析的最大时长
	MaxAgentRetries = 2               // 单次分析最大重试次数
)

// 指数退避参数，测试中会调小
var (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 15 * time.Second
)

// ErrEmptyResponse 模型没有返回任何文本
var ErrEmptyResponse = errors.New("model returned an empty response")

// isRetryableError 判断错误是否可重试
// 超时、主动取消、配置错误不重试；网络错误、API 临时错误可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "config") || strings.Contains(msg, "not found") ||
		strings.Contains(msg, "api key") || strings.Contains(msg, "status code: 401") {
		return false
	}
	return true
}

// retryRun 带指数退避的重试包装
// 在父 ctx 未取消的前提下，最多重试 maxRetries 次
func retryRun(ctx context.Context, maxRetries int, fn func() (string, error)) (string, error) {
	result, err := fn()
	if err == nil || !isRetryableError(err) {
		return result, err
	}

	lastErr := err
	for i := 1; i <= maxRetries; i++ {
		delay := retryBaseDelay * time.Duration(1<<(i-1))
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
		log.Warn("retry %d/%d after %v, last error: %v", i, maxRetries, delay, lastErr)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}

		result, err = fn()
		if err == nil {
			log.Info("retry %d/%d succeeded", i, maxRetries)
			return result, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Analyst 股票分析 Agent，每次提问使用独立会话
type Analyst struct {
	agent      agent.Agent
	timeout    time.Duration
	maxRetries int
}

// NewAnalyst 创建带内置工具和 MCP 工具集的分析 Agent
func NewAnalyst(llm model.LLM, registry *tools.Registry, mcpMgr *mcp.Manager) (*Analyst, error) {
	if llm == nil {
		return nil, errors.New("analyst requires a model")
	}
	builder := adk.NewAnalystAgentBuilder(llm, AnalystInstruction(), registry, mcpMgr)
	a, err := builder.BuildAgent()
	if err != nil {
		return nil, fmt.Errorf("build analyst agent: %w", err)
	}
	return &Analyst{agent: a, timeout: AgentTimeout, maxRetries: MaxAgentRetries}, nil
}

// RunAgent 执行一次完整的分析提问
func (a *Analyst) RunAgent(ctx context.Context, query string) (string, error) {
	start := time.Now()
	text, err := retryRun(ctx, a.maxRetries, func() (string, error) {
		runCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.runOnce(runCtx, query)
	})
	if err != nil {
		return "", err
	}
	log.Debug("analysis finished in %v (%d chars)", time.Since(start), len(text))
	return text, nil
}

// CompareCompetitors 对比股票与竞品
func (a *Analyst) CompareCompetitors(ctx context.Context, symbol string, competitors []string) (string, error) {
	return a.RunAgent(ctx, CompetitorQuery(symbol, competitors))
}

// runOnce 在新会话中运行一次 Agent
func (a *Analyst) runOnce(ctx context.Context, query string) (string, error) {
	return runInSession(ctx, a.agent, query)
}

// runInSession 创建内存会话并运行 agent，返回拼接后的回复文本
func runInSession(ctx context.Context, ag agent.Agent, query string) (string, error) {
	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          ag,
		SessionService: sessionService,
	})
	if err != nil {
		return "", err
	}

	sessionID := "session-" + uuid.NewString()
	_, err = sessionService.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("create session error: %w", err)
	}

	userMsg := genai.NewContentFromText(query, genai.RoleUser)
	text, err := collectText(r.Run(ctx, userID, sessionID, userMsg, agent.RunConfig{}))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// collectText 拼接事件流中的文本，跳过思考内容
func collectText(events iter.Seq2[*session.Event, error]) (string, error) {
	var sb strings.Builder
	for event, err := range events {
		if err != nil {
			return "", err
		}
		if event == nil || event.LLMResponse.Content == nil {
			continue
		}
		for _, part := range event.LLMResponse.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
