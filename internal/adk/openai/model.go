package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/stockdesk/internal/logger"
)

var modelLog = logger.New("openai:model")

var _ model.LLM = &OpenAIModel{}

// ErrNoChoicesInResponse 响应中没有候选
var ErrNoChoicesInResponse = errors.New("no choices in OpenAI response")

// OpenAIModel 基于 Chat Completions 接口实现 model.LLM
type OpenAIModel struct {
	Client       *openai.Client
	ModelName    string
	NoSystemRole bool
}

// NewOpenAIModel 创建 OpenAI 兼容模型
func NewOpenAIModel(modelName string, cfg openai.ClientConfig, noSystemRole bool) *OpenAIModel {
	return &OpenAIModel{
		Client:       openai.NewClientWithConfig(cfg),
		ModelName:    modelName,
		NoSystemRole: noSystemRole,
	}
}

// Name 返回模型名称
func (o *OpenAIModel) Name() string {
	return o.ModelName
}

// GenerateContent 实现 model.LLM 接口
func (o *OpenAIModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	if stream {
		return o.generateStream(ctx, req)
	}
	return o.generate(ctx, req)
}

func (o *OpenAIModel) generate(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq, err := toChatRequest(req, o.ModelName, o.NoSystemRole)
		if err != nil {
			yield(nil, err)
			return
		}

		resp, err := o.Client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			yield(nil, err)
			return
		}

		llmResp, err := fromChatResponse(&resp)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(llmResp, nil)
	}
}

func (o *OpenAIModel) generateStream(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq, err := toChatRequest(req, o.ModelName, o.NoSystemRole)
		if err != nil {
			yield(nil, err)
			return
		}
		chatReq.Stream = true

		stream, err := o.Client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			yield(nil, err)
			return
		}
		defer stream.Close()

		o.processStream(stream, yield)
	}
}

// toolCallBuilder 聚合流式工具调用片段
type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

// processStream 逐块转发文本，结束时发送聚合后的完整响应
func (o *OpenAIModel) processStream(stream *openai.ChatCompletionStream, yield func(*model.LLMResponse, error) bool) {
	var (
		text, reasoning strings.Builder
		calls           = make(map[int]*toolCallBuilder)
		reason          genai.FinishReason
		meta            *genai.GenerateContentResponseUsageMetadata
	)

	partial := func(p *genai.Part) bool {
		return yield(&model.LLMResponse{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{p}},
			Partial: true,
		}, nil)
	}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				modelLog.Warn("stream interrupted: %v", err)
			}
			yield(nil, fmt.Errorf("read stream: %w", err))
			return
		}

		if chunk.Usage != nil {
			meta = usage(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens, chunk.Usage.TotalTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if d := choice.Delta.ReasoningContent; d != "" {
			reasoning.WriteString(d)
			if !partial(&genai.Part{Text: d, Thought: true}) {
				return
			}
		}
		if d := choice.Delta.Content; d != "" {
			text.WriteString(d)
			if !partial(&genai.Part{Text: d}) {
				return
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			b, ok := calls[idx]
			if !ok {
				b = &toolCallBuilder{}
				calls[idx] = b
			}
			if tc.ID != "" {
				b.id = tc.ID
			}
			if tc.Function.Name != "" {
				b.name = tc.Function.Name
			}
			b.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			reason = finishReason(string(choice.FinishReason))
		}
	}

	final := &genai.Content{Role: genai.RoleModel}
	if reasoning.Len() > 0 {
		final.Parts = append(final.Parts, &genai.Part{Text: reasoning.String(), Thought: true})
	}
	if text.Len() > 0 {
		final.Parts = append(final.Parts, &genai.Part{Text: text.String()})
	}
	indices := make([]int, 0, len(calls))
	for idx := range calls {
		indices = append(indices, idx)
	}
	slices.Sort(indices)
	for _, idx := range indices {
		b := calls[idx]
		final.Parts = append(final.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{ID: b.id, Name: b.name, Args: parseJSONArgs(b.args.String())},
		})
	}

	yield(&model.LLMResponse{
		Content:       final,
		UsageMetadata: meta,
		FinishReason:  reason,
		TurnComplete:  true,
	}, nil)
}
