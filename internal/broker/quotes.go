package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"tradejoy/internal/log"
)

// MarketIndices are the index symbols shown on the dashboard.
var MarketIndices = []string{"^GSPC", "^DJI", "^IXIC"}

var mockIndices = map[string]Stock{
	"^GSPC": {Symbol: "S&P 500", Price: decimal.RequireFromString("4756.50"), Change: decimal.RequireFromString("12.35"), ChangePercent: 0.26, Volume: 3500000000},
	"^DJI":  {Symbol: "Dow Jones", Price: decimal.RequireFromString("37863.80"), Change: decimal.RequireFromString("-45.20"), ChangePercent: -0.12, Volume: 285000000},
	"^IXIC": {Symbol: "NASDAQ", Price: decimal.RequireFromString("14944.83"), Change: decimal.RequireFromString("67.12"), ChangePercent: 0.45, Volume: 4200000000},
}

// MockIndex returns the built-in quote for an index symbol. Unknown symbols
// get a flat quote at 100.
func MockIndex(symbol string) Stock {
	if s, ok := mockIndices[symbol]; ok {
		return s
	}
	return Stock{Symbol: symbol, Price: decimal.NewFromInt(100), Volume: 1000000}
}

// Quote fetches the current quote for symbol. Concurrent lookups of the same
// symbol share one request and answers are cached for the quote TTL.
func (c *Client) Quote(ctx context.Context, symbol string) (Stock, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Stock{}, fmt.Errorf("%w: missing symbol", ErrInvalidRequest)
	}
	if c.quotes != nil {
		if s, ok := c.quotes.Get(symbol); ok {
			return s, nil
		}
	}

	v, err, shared := c.group.Do(symbol, func() (any, error) {
		var s Stock
		if err := c.do(ctx, http.MethodGet, "/stock/"+url.PathEscape(symbol), nil, &s); err != nil {
			return Stock{}, err
		}
		if c.quotes != nil {
			c.quotes.Set(symbol, s)
		}
		return s, nil
	})
	if err != nil {
		return Stock{}, err
	}
	if shared {
		c.logger.DebugContext(ctx, "Quote request shared", log.FieldOperation, log.OpQuote, log.FieldSymbol, symbol)
	}
	return v.(Stock), nil
}

// IndexQuote fetches an index quote and falls back to built-in data when the
// API cannot be reached. API errors are returned unchanged.
func (c *Client) IndexQuote(ctx context.Context, symbol string) (Stock, error) {
	s, err := c.Quote(ctx, symbol)
	if err == nil {
		return s, nil
	}
	if IsNetwork(err) {
		c.logger.WarnContext(ctx, "Trading API not available, using mock index data",
			log.FieldSymbol, symbol, log.FieldError, err)
		return MockIndex(symbol), nil
	}
	return Stock{}, err
}

// Indices returns quotes for every MarketIndices symbol in order. An index
// whose lookup fails with an API error is left out.
func (c *Client) Indices(ctx context.Context) []Stock {
	out := make([]Stock, 0, len(MarketIndices))
	for _, sym := range MarketIndices {
		s, err := c.IndexQuote(ctx, sym)
		if err != nil {
			c.logger.WarnContext(ctx, "Index quote failed", log.FieldSymbol, sym, log.FieldError, err)
			continue
		}
		out = append(out, s)
	}
	return out
}
