package reasoning

import (
	"context"
	"iter"
	"sync"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// fakeLLM 按顺序返回预设回复的模型
type fakeLLM struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []*model.LLMRequest
}

func (f *fakeLLM) Name() string { return "fake-model" }

func (f *fakeLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	f.mu.Lock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	var reply string
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.replies) {
		reply = f.replies[i]
	} else if len(f.replies) > 0 {
		reply = f.replies[len(f.replies)-1]
	}
	f.mu.Unlock()

	return func(yield func(*model.LLMResponse, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		yield(&model.LLMResponse{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: "thinking...", Thought: true}, {Text: reply}},
			},
			TurnComplete: true,
		}, nil)
	}
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
