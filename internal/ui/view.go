package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/run-bigpig/stockdesk/internal/chart"
	"github.com/run-bigpig/stockdesk/internal/indicators"
	"github.com/run-bigpig/stockdesk/internal/models"
	"github.com/run-bigpig/stockdesk/internal/services"
	"github.com/run-bigpig/stockdesk/internal/session"
)

const (
	welcomeTitle  = "Welcome to Stock Desk"
	emptySidebar  = "No stocks analyzed yet.\nAsk a question to get started!"
	analyzingText = "Analyzing... (you can switch to other stocks while waiting)"
	comparingText = "Analyzing competitors... this may take a moment."
	technicalFail = "Unable to fetch stock data for technical analysis."
)

var viewTitles = map[session.View]string{
	session.ViewChart:       "Chart",
	session.ViewChat:        "Chat",
	session.ViewTechnical:   "Technical",
	session.ViewCompetitors: "Competitors",
}

func (m *Model) renderSidebar() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("◈ Stock Desk"))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("Your Stocks"))
	sb.WriteString("\n")

	symbols := m.state.Symbols()
	if len(symbols) == 0 {
		sb.WriteString(mutedStyle.Render(emptySidebar))
		sb.WriteString("\n")
	}
	for _, sym := range symbols {
		line := "  " + itemStyle.Render(sym)
		if sym == m.state.Selected() {
			line = cursorStyle.Render("› ") + selectedStyle.Render(sym)
		}
		if m.state.IsAnalyzing(sym) {
			line += badgeStyle.Render(" ...")
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	mode := "off"
	if m.state.BeginnerMode() {
		mode = "on"
	}
	sb.WriteString("\n")
	sb.WriteString(divider(sidebarWidth - 2))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render("ctrl+t new chat\nctrl+r refresh all\nctrl+x clear all"))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render("ctrl+b beginner:") + " " + selectedStyle.Render(mode))

	return sidebarStyle.Height(max(m.height-1, 1)).Render(sb.String())
}

func (m *Model) renderHeader() string {
	sym := m.state.Selected()
	if sym == "" {
		return titleStyle.Render(welcomeTitle) + "\n" + divider(m.mainWidth())
	}

	title := titleStyle.Render(sym)
	if c, ok := m.state.Conversation(sym); ok {
		if q, ok := models.QuoteFromHistory(sym, c.StockData); ok {
			title += "  " + changeStyle(q.Change).Render(fmt.Sprintf("%s %s", chart.FormatPrice(q.Price), chart.FormatChange(q.Change, q.ChangePercent)))
		}
	}

	tabs := make([]string, 0, 4)
	for _, v := range m.state.Views() {
		style := tabStyle
		if v == m.state.View() {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(viewTitles[v]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinHorizontal(lipgloss.Top, tabs...), divider(m.mainWidth()))
}

func (m *Model) renderFooter() string {
	var lines []string
	sym := m.state.Selected()
	switch {
	case m.resolving:
		lines = append(lines, m.spinner.View()+" Looking up the stock symbol...")
	case m.adding != "":
		lines = append(lines, m.spinner.View()+" Adding "+m.adding+"...")
	case m.refreshing:
		lines = append(lines, m.spinner.View()+" Refreshing prices...")
	case sym != "" && m.state.View() == session.ViewChat && m.state.IsAnalyzing(sym):
		line := m.spinner.View() + " " + analyzingText
		if n := len(m.state.Queued(sym)); n > 0 {
			line += mutedStyle.Render(fmt.Sprintf(" (%d queued)", n))
		}
		lines = append(lines, line)
	}
	if w := m.state.Warning(); w != "" && sym == "" {
		lines = append(lines, warningStyle.Render(w))
	}
	if m.inputVisible() {
		lines = append(lines, divider(m.mainWidth()), m.input.View())
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody() string {
	sym := m.state.Selected()
	if sym == "" {
		return m.renderWelcome()
	}
	c, ok := m.state.Conversation(sym)
	if !ok {
		return ""
	}
	switch m.state.View() {
	case session.ViewChart:
		return m.renderChart(sym, c)
	case session.ViewTechnical:
		return m.renderTechnical(sym)
	case session.ViewCompetitors:
		return m.renderCompetitors(sym, c)
	default:
		return m.renderChat(c)
	}
}

func (m *Model) renderWelcome() string {
	return strings.Join([]string{
		"Ask anything about a stock and an AI analyst will research it for you.",
		"",
		mutedStyle.Render("Try:"),
		mutedStyle.Render("  • How is Apple doing today?"),
		mutedStyle.Render("  • Should I be worried about NVDA's valuation?"),
		mutedStyle.Render("  • What's the latest news on Tesla?"),
		"",
		mutedStyle.Render("Each stock gets its own tab in the sidebar. Analyses run in the"),
		mutedStyle.Render("background, so you can keep asking about other stocks."),
	}, "\n")
}

func (m *Model) renderChart(sym string, c *models.Conversation) string {
	height := max(m.viewport.Height-4, 5)
	out := chart.Render(sym, c.StockData, m.mainWidth(), height)
	if metrics := chart.Metrics(sym, c.StockData); metrics != "" {
		out += "\n\n" + metrics
	}
	return out
}

func (m *Model) renderChat(c *models.Conversation) string {
	width := m.mainWidth()
	parts := make([]string, 0, len(c.Messages)*2)
	for _, msg := range c.Messages {
		if msg.Role == models.RoleUser {
			parts = append(parts, userStyle.Render("You"), lipgloss.NewStyle().Width(width).Render(msg.Content), "")
			continue
		}
		parts = append(parts, botStyle.Render("Analyst"), m.markdown.Render(m.state.Present(msg.Content), width), "")
	}
	return strings.Join(parts, "\n")
}

func (m *Model) renderTechnical(sym string) string {
	t, ok := m.technical[sym]
	if !ok {
		return mutedStyle.Render("Loading technical data...")
	}
	if t.history.Failed() {
		return errorStyle.Render(technicalFail)
	}

	f := t.frame
	width := m.mainWidth()
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Signal Summary"))
	sb.WriteString("\n")
	for _, s := range indicators.Summarize(f) {
		sb.WriteString(fmt.Sprintf("%-12s %10s  %s\n", s.Name, s.Value, biasStyle(s.Bias).Render(s.Label)))
	}

	section := func(title string, values []float64, height int) {
		values = finite(values)
		sb.WriteString("\n")
		sb.WriteString(titleStyle.Render(title))
		sb.WriteString("\n")
		if len(values) == 0 {
			sb.WriteString(mutedStyle.Render("Insufficient data"))
			sb.WriteString("\n")
			return
		}
		for _, row := range chart.Area(values, width, height) {
			sb.WriteString(row)
			sb.WriteString("\n")
		}
	}
	line := func(label string, values []float64) {
		values = finite(values)
		if len(values) == 0 {
			return
		}
		sb.WriteString(fmt.Sprintf("%-8s %s %s\n", label, chart.Sparkline(values, width-20), chart.FormatPrice(values[len(values)-1])))
	}

	section(fmt.Sprintf("Price & Moving Averages (%d days)", f.Len()), f.Close, 8)
	line("SMA 20", f.SMA20)
	line("SMA 50", f.SMA50)
	line("BB Up", f.BBUpper)
	line("BB Low", f.BBLower)
	section("MACD Histogram", f.MACDHist, 4)
	section(fmt.Sprintf("RSI (overbought %.0f / oversold %.0f)", indicators.Overbought, indicators.Oversold), f.RSI, 4)
	section("Volume", f.Volume, 3)
	return sb.String()
}

func (m *Model) renderCompetitors(sym string, c *models.Conversation) string {
	peers := m.deps.Competitors.Competitors(sym, services.DefaultCompetitorLimit)
	if len(peers) == 0 {
		return mutedStyle.Render(fmt.Sprintf("No competitor data available for %s. Try a major stock like AAPL, TSLA, NVDA, etc.", sym))
	}

	width := m.mainWidth()
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Competitors of " + sym))
	sb.WriteString("\n")

	histories, loaded := m.peers[sym]
	for i, peer := range peers {
		action := "add"
		if m.state.HasConversation(peer) {
			action = "view"
		}
		row := fmt.Sprintf("[%d] %-6s", i+1, peer)
		switch h := histories[peer]; {
		case !loaded:
			row += mutedStyle.Render("  loading...")
		case h.Failed():
			row += "  " + chart.Mini(h, 12) + "  " + mutedStyle.Render("no data")
		default:
			q, _ := models.QuoteFromHistory(peer, h)
			row += "  " + chart.Mini(h, 12) + "  " + chart.FormatPrice(q.Price) + "  " +
				changeStyle(q.Change).Render(chart.FormatChange(q.Change, q.ChangePercent))
		}
		sb.WriteString(row + "  " + mutedStyle.Render(action))
		sb.WriteString("\n")
	}
	sb.WriteString(mutedStyle.Render("Press 1-4 to add or view a competitor."))
	sb.WriteString("\n\n")
	sb.WriteString(divider(width))
	sb.WriteString("\n")
	sb.WriteString(titleStyle.Render("Competitive Analysis"))
	sb.WriteString("\n")

	switch {
	case m.state.IsComparing(sym):
		sb.WriteString(m.spinner.View() + " " + comparingText)
	case c.CompetitorAnalysis != nil:
		sb.WriteString(m.markdown.Render(m.state.Present(*c.CompetitorAnalysis), width))
		sb.WriteString("\n\n")
		sb.WriteString(mutedStyle.Render("Press r to refresh the analysis."))
	default:
		sb.WriteString(mutedStyle.Render(comparingText))
	}
	return sb.String()
}

func changeStyle(change float64) lipgloss.Style {
	if change < 0 {
		return downStyle
	}
	return upStyle
}

func biasStyle(b indicators.Bias) lipgloss.Style {
	switch b {
	case indicators.Bullish:
		return upStyle
	case indicators.Bearish:
		return downStyle
	default:
		return mutedStyle
	}
}

// finite 去掉指标预热期的 NaN
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
