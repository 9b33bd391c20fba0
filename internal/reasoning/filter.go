package reasoning

import (
	"regexp"
	"strings"
)

// BeginnerMarker 回答末尾新手摘要的标题
const BeginnerMarker = "🎓 Beginner Summary"

// beginnerMarkerRe 匹配新手摘要标题，容忍前置的列表/标题/强调符号
var beginnerMarkerRe = regexp.MustCompile(
	`(?i)\n?[ \t]*(?:[#>*_-]+[ \t]*)*🎓[ \t]*[*_]*[ \t]*beginner(?:'s|’s)?[ \t]+(?:summary|takeaways?)`,
)

// FindMarker 返回第一个标记的位置，没有时返回 -1
func FindMarker(text string) int {
	loc := beginnerMarkerRe.FindStringIndex(text)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// Filter 按模式截取回答：新手模式只保留摘要段，完整模式去掉摘要段。
// 找不到标记时原样返回。
func Filter(text string, beginnerOnly bool) string {
	m := FindMarker(text)
	if m < 0 {
		return text
	}
	if beginnerOnly {
		if text[m] == '\n' {
			m++
		}
		// 匹配可能从行内空白开始
		return strings.TrimLeft(text[m:], " \t")
	}
	return strings.TrimRightFunc(text[:m], isSpace)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
