package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// toChatRequest 将 ADK 请求转换为 Chat Completions 请求
func toChatRequest(req *model.LLMRequest, modelName string, noSystemRole bool) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Contents)+1)
	for _, content := range req.Contents {
		msgs, err := toChatMessages(content)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		messages = append(messages, msgs...)
	}

	out := openai.ChatCompletionRequest{Model: modelName}

	cfg := req.Config
	if cfg != nil {
		if cfg.Temperature != nil {
			out.Temperature = *cfg.Temperature
		}
		if cfg.TopP != nil {
			out.TopP = *cfg.TopP
		}
		if cfg.MaxOutputTokens > 0 {
			out.MaxTokens = int(cfg.MaxOutputTokens)
		}
		if len(cfg.StopSequences) > 0 {
			out.Stop = cfg.StopSequences
		}
		if cfg.ResponseMIMEType == "application/json" {
			out.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			}
		}
		if len(cfg.Tools) > 0 {
			tools, err := convertTools(cfg.Tools)
			if err != nil {
				return openai.ChatCompletionRequest{}, err
			}
			out.Tools = tools
		}
		if sys := joinText(cfg.SystemInstruction); sys != "" {
			messages = withSystemPrompt(messages, sys, noSystemRole)
		}
	}

	out.Messages = messages
	return out, nil
}

// withSystemPrompt 放入系统指令；不支持 system 角色时并入第一条用户消息
func withSystemPrompt(messages []openai.ChatCompletionMessage, sys string, noSystemRole bool) []openai.ChatCompletionMessage {
	if !noSystemRole {
		return append([]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: sys}}, messages...)
	}
	for i, m := range messages {
		if m.Role == openai.ChatMessageRoleUser {
			messages[i].Content = sys + "\n\n" + m.Content
			return messages
		}
	}
	return append([]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: sys}}, messages...)
}

// toChatMessages 将 genai.Content 转换为消息；函数返回值各自成为 tool 消息
func toChatMessages(content *genai.Content) ([]openai.ChatCompletionMessage, error) {
	if content == nil {
		return nil, nil
	}

	var out []openai.ChatCompletionMessage
	msg := openai.ChatCompletionMessage{Role: roleToOpenAI(content.Role)}
	var text, reasoning strings.Builder

	for _, part := range content.Parts {
		switch {
		case part.FunctionResponse != nil:
			payload, err := json.Marshal(part.FunctionResponse.Response)
			if err != nil {
				return nil, fmt.Errorf("marshal function response: %w", err)
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: part.FunctionResponse.ID,
				Name:       part.FunctionResponse.Name,
				Content:    string(payload),
			})
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("marshal function args: %w", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   part.FunctionCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case part.Thought && part.Text != "":
			reasoning.WriteString(part.Text)
		case part.Text != "":
			text.WriteString(part.Text)
		}
	}

	msg.Content = text.String()
	msg.ReasoningContent = reasoning.String()
	if msg.Content != "" || len(msg.ToolCalls) > 0 {
		out = append(out, msg)
	}
	return out, nil
}

func roleToOpenAI(role string) string {
	switch role {
	case genai.RoleModel:
		return openai.ChatMessageRoleAssistant
	case "system":
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// joinText 拼接内容中的文本
func joinText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var texts []string
	for _, part := range content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// convertTools 转换工具声明
func convertTools(genaiTools []*genai.Tool) ([]openai.Tool, error) {
	var out []openai.Tool
	for _, t := range genaiTools {
		if t == nil {
			continue
		}
		for _, decl := range t.FunctionDeclarations {
			var params any = decl.ParametersJsonSchema
			if decl.ParametersJsonSchema == nil {
				if decl.Parameters == nil {
					return nil, fmt.Errorf("parameters is nil for tool %s", decl.Name)
				}
				params = decl.Parameters
			}
			out = append(out, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}
	return out, nil
}

// fromChatResponse 转换非流式响应
func fromChatResponse(resp *openai.ChatCompletionResponse) (*model.LLMResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesInResponse
	}

	choice := resp.Choices[0]
	content := &genai.Content{Role: genai.RoleModel}

	if choice.Message.ReasoningContent != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.ReasoningContent, Thought: true})
	}
	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != openai.ToolTypeFunction {
			continue
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: parseJSONArgs(tc.Function.Arguments),
			},
		})
	}

	return &model.LLMResponse{
		Content:       content,
		UsageMetadata: usage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
		FinishReason:  finishReason(string(choice.FinishReason)),
		TurnComplete:  true,
	}, nil
}

func usage(prompt, completion, total int) *genai.GenerateContentResponseUsageMetadata {
	if total <= 0 {
		return nil
	}
	return &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     int32(prompt),
		CandidatesTokenCount: int32(completion),
		TotalTokenCount:      int32(total),
	}
}

func finishReason(reason string) genai.FinishReason {
	switch reason {
	case "stop", "tool_calls", "function_call":
		return genai.FinishReasonStop
	case "length":
		return genai.FinishReasonMaxTokens
	case "content_filter":
		return genai.FinishReasonSafety
	default:
		return genai.FinishReasonUnspecified
	}
}

// parseJSONArgs 解析工具参数，非法 JSON 视为空参数
func parseJSONArgs(raw string) map[string]any {
	args := make(map[string]any)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return make(map[string]any)
	}
	return args
}
