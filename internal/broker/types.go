package broker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Trade actions accepted by POST /trade.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// UserID is the account id returned by /login and /register. The API sends
// it as a number or a string depending on the backend.
type UserID string

func (u *UserID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*u = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*u = UserID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

// Session identifies the logged in account. The cookie itself lives in the
// client's jar.
type Session struct {
	UserID   UserID `json:"user_id"`
	Username string `json:"-"`
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Stock is a quote as returned by GET /stock/{symbol}.
type Stock struct {
	Symbol        string              `json:"symbol"`
	Price         decimal.Decimal     `json:"price"`
	Change        decimal.Decimal     `json:"change"`
	ChangePercent float64             `json:"changePercent"`
	Volume        int64               `json:"volume"`
	DayHigh       decimal.Decimal     `json:"dayHigh"`
	DayLow        decimal.Decimal     `json:"dayLow"`
	MarketCap     decimal.NullDecimal `json:"marketCap"`
}

// EstimatedTotal is the cost of quantity shares at the quoted price.
func (s Stock) EstimatedTotal(quantity int) decimal.Decimal {
	return s.Price.Mul(decimal.NewFromInt(int64(quantity)))
}

// Position is one holding in the portfolio.
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     int             `json:"quantity"`
	AvgPrice     decimal.Decimal `json:"avgPrice"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Value        decimal.Decimal `json:"value"`
	PnL          decimal.Decimal `json:"pnl"`
}

type Portfolio struct {
	Positions  []Position      `json:"portfolio"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Cash       decimal.Decimal `json:"cash"`
}

// NetWorth is the value of all positions plus cash.
func (p Portfolio) NetWorth() decimal.Decimal {
	return p.TotalValue.Add(p.Cash)
}

// TotalGain sums the unrealised profit and loss of every position.
func (p Portfolio) TotalGain() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range p.Positions {
		total = total.Add(pos.PnL)
	}
	return total
}

// TradeRequest is the body of POST /trade.
type TradeRequest struct {
	Symbol   string `json:"symbol"`
	Action   string `json:"action"`
	Quantity int    `json:"quantity"`
}

// Validate rejects requests the API would refuse anyway.
func (r TradeRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: missing symbol", ErrInvalidRequest)
	}
	if r.Action != ActionBuy && r.Action != ActionSell {
		return fmt.Errorf("%w: action %q", ErrInvalidRequest, r.Action)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	return nil
}

// WatchItem is one watchlist row with its latest quote.
type WatchItem struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent float64         `json:"changePercent"`
	Volume        int64           `json:"volume"`
}

// TradeRecord is one executed trade from GET /history.
type TradeRecord struct {
	Timestamp string          `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Action    string          `json:"action"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type watchlistResponse struct {
	Watchlist []WatchItem `json:"watchlist"`
}

type historyResponse struct {
	History []TradeRecord `json:"history"`
}
