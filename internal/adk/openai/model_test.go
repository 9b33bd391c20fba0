package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func newTestModel(t *testing.T, handler http.HandlerFunc, noSystemRole bool) *OpenAIModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewOpenAIModel("gpt-4-turbo", cfg, noSystemRole)
}

func userRequest(system, text string) *model.LLMRequest {
	return &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, "system"),
		},
	}
}

func TestGenerateNonStreaming(t *testing.T) {
	var got openai.ChatCompletionRequest
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"AAPL"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":1,"total_tokens":11}}`)
	}, false)

	var responses []*model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), userRequest("be brief", "Analyze Apple"), false) {
		require.NoError(t, err)
		responses = append(responses, resp)
	}

	require.Len(t, responses, 1)
	assert.Equal(t, "AAPL", responses[0].Content.Parts[0].Text)
	assert.Equal(t, genai.FinishReasonStop, responses[0].FinishReason)
	assert.EqualValues(t, 11, responses[0].UsageMetadata.TotalTokenCount)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	assert.Equal(t, "Analyze Apple", got.Messages[1].Content)
}

func TestGenerateWithoutSystemRole(t *testing.T) {
	var got openai.ChatCompletionRequest
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}, true)

	for _, err := range m.GenerateContent(context.Background(), userRequest("be brief", "hi"), false) {
		require.NoError(t, err)
	}

	require.Len(t, got.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[0].Role)
	assert.Equal(t, "be brief\n\nhi", got.Messages[0].Content)
}

func TestGenerateStreaming(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"index":0,"delta":{"content":"Hello "}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"world"}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_stock_info","arguments":"{\"sym"}}]}}]}`,
			`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"bol\":\"AAPL\"}"}}]},"finish_reason":"tool_calls"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}, false)

	var partials []string
	var final *model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), userRequest("sys", "hi"), true) {
		require.NoError(t, err)
		if resp.Partial {
			partials = append(partials, resp.Content.Parts[0].Text)
			continue
		}
		final = resp
	}

	assert.Equal(t, []string{"Hello ", "world"}, partials)
	require.NotNil(t, final)
	require.Len(t, final.Content.Parts, 2)
	assert.Equal(t, "Hello world", final.Content.Parts[0].Text)
	call := final.Content.Parts[1].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "get_stock_info", call.Name)
	assert.Equal(t, map[string]any{"symbol": "AAPL"}, call.Args)
}

func TestToChatMessagesFunctionResponse(t *testing.T) {
	content := &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{{
			FunctionResponse: &genai.FunctionResponse{ID: "call_1", Name: "get_current_date", Response: map[string]any{"date": "Monday"}},
		}},
	}
	msgs, err := toChatMessages(content)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, openai.ChatMessageRoleTool, msgs[0].Role)
	assert.Equal(t, "call_1", msgs[0].ToolCallID)
	assert.JSONEq(t, `{"date":"Monday"}`, msgs[0].Content)
}

func TestParseJSONArgs(t *testing.T) {
	assert.Empty(t, parseJSONArgs(""))
	assert.Empty(t, parseJSONArgs("{broken"))
	assert.Equal(t, map[string]any{"days": float64(30)}, parseJSONArgs(`{"days":30}`))
}
