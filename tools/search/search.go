// Package search provides offline stand-ins for web search and market data
// lookups.
package search

import (
	"net/url"
	"strings"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

// StockPrice is the price every symbol is quoted at.
const StockPrice = 100.0

// QueryArgs are the arguments of google_search.
type QueryArgs struct {
	Query string `json:"query" description:"The search query"`
}

// SymbolArgs are the arguments of stock_price.
type SymbolArgs struct {
	Symbol string `json:"symbol" description:"The ticker symbol, e.g. GOOG"`
}

// SearchURL returns the Google search URL for query.
func SearchURL(query string) string {
	return "https://www.google.com/search?" + url.Values{"q": {query}}.Encode()
}

// GoogleSearch returns the google_search tool. It answers with the search
// URL instead of fetching results.
func GoogleSearch() tool.Tool {
	return tool.NewTypedTool("google_search", "Search Google for the query.", func(_ *core.ToolContext, args QueryArgs) (any, error) {
		return SearchURL(strings.TrimSpace(args.Query)), nil
	})
}

// Price returns the stock_price tool. Every symbol is quoted at StockPrice.
func Price() tool.Tool {
	return tool.NewTypedTool("stock_price", "Get the stock price for the symbol.", func(_ *core.ToolContext, _ SymbolArgs) (any, error) {
		return StockPrice, nil
	})
}

// Tools returns both search tools.
func Tools() []tool.Tool {
	return []tool.Tool{GoogleSearch(), Price()}
}
