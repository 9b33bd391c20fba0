package reasoning

import (
	"fmt"
	"strings"
)

// SystemPrompt 股票分析 Agent 的系统指令
const SystemPrompt = `You are an expert stock market analyst AI assistant. Your job is to help users analyze stocks and make informed investment decisions.

You have access to the following tools:
1. get_current_date - Use this FIRST to get today's date so you know the current date when searching for information.
2. search_web - Use this to search the internet for news, articles, and information about stocks, companies, and market trends.
3. get_stock_info - Use this to fetch the latest End of Day (EOD) stock price data for a given stock symbol.
4. get_price_history - Use this to fetch recent daily price bars when you need trend or momentum context.

When analyzing a stock, you should:
1. First get the current date using get_current_date
2. Fetch the current stock price data using get_stock_info
3. Search for recent news and developments about the company
4. Consider market trends and industry factors
5. Provide a balanced analysis with both bullish and bearish perspectives
6. Always remind users that this is not financial advice and they should do their own research

Be concise, factual, and helpful. Cite your sources when providing information from web searches.`

// beginnerInstruction 要求回答以新手摘要结尾，供 Filter 切分
var beginnerInstruction = fmt.Sprintf(`

Always finish your answer with a section whose heading is exactly "## %s". In that section, for someone new to investing, give:
- a one-line plain-English verdict
- a rating (Buy / Hold / Sell)
- a risk level (Low / Medium / High)
- one practical tip
Do not use that heading anywhere else in the answer.`, BeginnerMarker)

// AnalystInstruction 完整的 Agent 指令
func AnalystInstruction() string {
	return SystemPrompt + beginnerInstruction
}

// CompetitorQuery 构建竞品对比的提问
func CompetitorQuery(symbol string, competitors []string) string {
	return fmt.Sprintf(`Compare %s against its main competitors: %s.

Provide a competitive analysis covering:

1. **PERFORMANCE COMPARISON** (Last 30 days):
   - Which stock performed best/worst recently?
   - Price changes and momentum comparison

2. **MARKET POSITION**:
   - Market cap comparison
   - Industry leadership ranking
   - Recent news/catalysts for each

3. **INVESTMENT COMPARISON**:
   - Which is the better value right now?
   - Risk comparison between them
   - Growth potential ranking

4. **VERDICT**:
   - Rank these stocks from best to worst for investment today
   - Explain your ranking briefly

Keep the analysis concise and actionable. Focus on what matters for making an investment decision TODAY.`,
		symbol, strings.Join(competitors, ", "))
}

// symbolPrompt 代码提取的提示词
func symbolPrompt(text string) string {
	return fmt.Sprintf(`Extract the stock ticker symbol from the following user question.
If there is a stock symbol mentioned (like AAPL, NVDA, TSLA, etc.) or a company name (like Apple, Nvidia, Tesla), return ONLY the ticker symbol in uppercase.
If no stock symbol or company is mentioned, return "NONE".

Examples:
- "What's happening with Apple?" -> AAPL
- "Analyze NVDA" -> NVDA
- "Tell me about Nvidia" -> NVDA
- "How is Tesla doing?" -> TSLA

User question: %s

Stock symbol:`, text)
}
