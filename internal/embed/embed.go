package embed

import (
	_ "embed"
)

// CompetitorsJSON 嵌入的竞品映射（代码 -> 竞品代码列表）
//
//go:embed competitors.json
var CompetitorsJSON []byte
