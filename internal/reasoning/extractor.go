package reasoning

import (
	"context"
	"strings"
	"time"
	"unicode"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ExtractTimeout 代码提取的最大时长
const ExtractTimeout = 30 * time.Second

// noSymbol 模型表示未提及股票时的回答
const noSymbol = "NONE"

// SymbolExtractor 从自然语言中提取股票代码
type SymbolExtractor struct {
	llm model.LLM
}

// NewSymbolExtractor 创建代码提取器
func NewSymbolExtractor(llm model.LLM) *SymbolExtractor {
	return &SymbolExtractor{llm: llm}
}

// ExtractSymbol 返回问题中提到的股票代码，无法确定时返回 false
func (e *SymbolExtractor) ExtractSymbol(ctx context.Context, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, ExtractTimeout)
	defer cancel()

	out, err := e.generate(ctx, symbolPrompt(text))
	if err != nil {
		log.Warn("symbol extraction failed: %v", err)
		return "", false
	}
	return NormalizeSymbol(out)
}

// generate 调用 LLM 生成内容
func (e *SymbolExtractor) generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0)
	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		Config:   &genai.GenerateContentConfig{Temperature: &temperature},
	}

	var result strings.Builder
	for resp, err := range e.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", err
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			result.WriteString(part.Text)
		}
	}
	return result.String(), nil
}

// NormalizeSymbol 清洗模型输出，只接受 1-5 位字母的代码
func NormalizeSymbol(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.Trim(s, "\"'`.$ ")
	if s == "" || s == noSymbol || len(s) > 5 {
		return "", false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return "", false
		}
	}
	return s, true
}
