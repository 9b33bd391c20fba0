package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// noMarginStyle 去掉文档边距
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// markdownRenderer glamour 渲染器，按宽度缓存渲染结果
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

func newMarkdownRenderer(style string) *markdownRenderer {
	if style == "" {
		style = "dark"
	}
	return &markdownRenderer{style: style, cache: make(map[string]string)}
}

// Render 渲染 markdown，失败时原样返回
func (r *markdownRenderer) Render(text string, width int) string {
	if width < 20 {
		width = 20
	}
	if r.renderer == nil || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			log.Warn("create markdown renderer: %v", err)
			return text
		}
		r.renderer = tr
		r.width = width
		r.cache = make(map[string]string)
	}
	if out, ok := r.cache[text]; ok {
		return out
	}
	out, err := r.renderer.Render(text)
	if err != nil {
		return text
	}
	out = strings.Trim(out, "\n")
	r.cache[text] = out
	return out
}
