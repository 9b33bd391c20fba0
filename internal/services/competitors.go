package services

import (
	"encoding/json"
	"strings"

	"github.com/run-bigpig/stockdesk/internal/embed"
)

// DefaultCompetitorLimit 默认竞品数量
const DefaultCompetitorLimit = 4

// CompetitorService 竞品查询
type CompetitorService struct {
	table map[string][]string
}

// NewCompetitorService 从嵌入数据加载竞品表
func NewCompetitorService() *CompetitorService {
	table := make(map[string][]string)
	if err := json.Unmarshal(embed.CompetitorsJSON, &table); err != nil {
		log.Error("decode competitor table: %v", err)
	}
	return &CompetitorService{table: table}
}

// NewCompetitorServiceWith 使用自定义竞品表
func NewCompetitorServiceWith(table map[string][]string) *CompetitorService {
	return &CompetitorService{table: table}
}

// Competitors 返回最多 limit 个竞品，未收录时返回空
func (s *CompetitorService) Competitors(symbol string, limit int) []string {
	if limit <= 0 {
		limit = DefaultCompetitorLimit
	}
	peers := s.table[strings.ToUpper(symbol)]
	if len(peers) > limit {
		peers = peers[:limit]
	}
	out := make([]string, len(peers))
	copy(out, peers)
	return out
}

// ForComparison 股票本身加竞品，本身排第一
func (s *CompetitorService) ForComparison(symbol string) []string {
	return append([]string{strings.ToUpper(symbol)}, s.Competitors(symbol, DefaultCompetitorLimit)...)
}
