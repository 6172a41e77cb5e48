package broker_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejoy/internal/broker"
	"tradejoy/internal/log"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeAPI mimics the trading API: /login sets a session cookie that the
// protected endpoints require.
func fakeAPI(t *testing.T, stockCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	authed := func(r *http.Request) bool {
		c, err := r.Cookie("session")
		return err == nil && c.Value == "s3cret"
	}

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cret", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{"user_id": 42})
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	})
	mux.HandleFunc("GET /portfolio", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not logged in"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"portfolio": []map[string]any{
				{"symbol": "AAPL", "quantity": 10, "avgPrice": 150, "currentPrice": 175.5, "value": 1755, "pnl": 255},
				{"symbol": "MSFT", "quantity": 2, "avgPrice": 400, "currentPrice": 390, "value": 780, "pnl": -20},
			},
			"totalValue": 2535,
			"cash":       10000.25,
		})
	})
	mux.HandleFunc("GET /stock/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(stockCalls, 1)
		sym := r.PathValue("symbol")
		if sym == "NOPE" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Stock not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"symbol": sym, "price": 175.5, "change": -1.25, "changePercent": -0.71,
			"volume": 1200, "dayHigh": 177, "dayLow": 174,
		})
	})
	mux.HandleFunc("POST /trade", func(w http.ResponseWriter, r *http.Request) {
		var req broker.TradeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Quantity > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Insufficient funds"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Bought 10 shares of AAPL"})
	})
	mux.HandleFunc("GET /watchlist", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"watchlist": []map[string]any{
			{"symbol": "TSLA", "price": 250, "change": 3, "changePercent": 1.2, "volume": 99},
		}})
	})
	mux.HandleFunc("POST /watchlist", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]string{"message": body["symbol"] + " added to watchlist"})
	})
	mux.HandleFunc("DELETE /watchlist/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": r.PathValue("symbol") + " removed from watchlist"})
	})
	mux.HandleFunc("GET /history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"history": []map[string]any{
			{"timestamp": "2024-03-01T10:00:00", "symbol": "AAPL", "action": "BUY", "quantity": 10, "price": 150, "total": 1500},
		}})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string, ttl time.Duration) *broker.Client {
	t.Helper()
	c, err := broker.NewClient(broker.Options{BaseURL: baseURL, QuoteTTL: ttl, Timeout: 2 * time.Second, Logger: quietLogger()})
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	_, err := broker.NewClient(broker.Options{})
	assert.Error(t, err)

	_, err = broker.NewClient(broker.Options{BaseURL: "localhost"})
	assert.Error(t, err)
}

func TestClient_LoginKeepsSessionCookie(t *testing.T) {
	var calls int32
	srv := fakeAPI(t, &calls)
	c := newClient(t, srv.URL, 0)
	ctx := context.Background()

	_, err := c.Portfolio(ctx)
	require.Error(t, err)
	assert.True(t, broker.IsUnauthorized(err))
	assert.False(t, c.LoggedIn())

	s, err := c.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, broker.UserID("42"), s.UserID)
	assert.Equal(t, "alice", s.Username)
	assert.True(t, c.LoggedIn())

	p, err := c.Portfolio(ctx)
	require.NoError(t, err)
	require.Len(t, p.Positions, 2)
	assert.Equal(t, "AAPL", p.Positions[0].Symbol)
	assert.True(t, decimal.RequireFromString("12535.25").Equal(p.NetWorth()))
	assert.True(t, decimal.NewFromInt(235).Equal(p.TotalGain()))

	require.NoError(t, c.Logout(ctx))
	assert.False(t, c.LoggedIn())
}

func TestClient_LoginFailureCarriesServerMessage(t *testing.T) {
	var calls int32
	srv := fakeAPI(t, &calls)
	c := newClient(t, srv.URL, 0)

	_, err := c.Login(context.Background(), "alice", "wrong")
	var apiErr *broker.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
	assert.False(t, c.LoggedIn())
}

func TestClient_LoginRequiresCredentials(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1", 0)
	_, err := c.Login(context.Background(), " ", "pw")
	assert.ErrorIs(t, err, broker.ErrInvalidRequest)
}

func TestClient_Quote(t *testing.T) {
	var calls int32
	srv := fakeAPI(t, &calls)
	c := newClient(t, srv.URL, time.Minute)
	ctx := context.Background()

	s, err := c.Quote(ctx, " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", s.Symbol)
	assert.True(t, decimal.RequireFromString("175.5").Equal(s.Price))
	assert.True(t, decimal.RequireFromString("1755").Equal(s.EstimatedTotal(10)))
	assert.False(t, s.MarketCap.Valid)

	_, err = c.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second lookup should be served from cache")

	_, err = c.Quote(ctx, "NOPE")
	assert.True(t, broker.IsNotFound(err))

	_, err = c.Quote(ctx, "")
	assert.ErrorIs(t, err, broker.ErrInvalidRequest)
}

func TestClient_QuoteWithoutCacheAlwaysFetches(t *testing.T) {
	var calls int32
	srv := fakeAPI(t, &calls)
	c := newClient(t, srv.URL, 0)
	assert.Nil(t, c.QuoteCache())

	for i := 0; i < 3; i++ {
		_, err := c.Quote(context.Background(), "MSFT")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Trade(t *testing.T) {
	var calls int32
	srv := fakeAPI(t, &calls)
	c := newClient(t, srv.URL, 0)
	ctx := context.Background()

	msg, err := c.Trade(ctx, broker.TradeRequest{Symbol: "aapl", Action: broker.ActionBuy, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, "Bought 10 shares of AAPL", msg)

	_, err = c.Trade(ctx, broker.TradeRequest{Symbol: "AAPL", Action: broker.ActionBuy, Quantity: 500})
	var apiErr *broker.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Insufficient funds", apiErr.Message)

	tests := []broker.TradeRequest{
		{Symbol: "", Action: broker.ActionBuy, Quantity: 1},
		{Symbol: "AAPL", Action: "HOLD", Quantity: 1},
		{Symbol: "AAPL", Action: broker.ActionSell, Quantity: 0},
	}
	for _, req := range tests {
		_, err := c.Trade(ctx, req)
		assert.ErrorIs(t, err, broker.ErrInvalidRequest)
	}
}

func TestClient_WatchlistAndHistory(t *testing.T) {
	var calls int32
	srv := fakeAPI(t, &calls)
	c := newClient(t, srv.URL, 0)
	ctx := context.Background()

	items, err := c.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "TSLA", items[0].Symbol)

	msg, err := c.AddToWatchlist(ctx, "nvda")
	require.NoError(t, err)
	assert.Equal(t, "NVDA added to watchlist", msg)

	msg, err = c.RemoveFromWatchlist(ctx, "nvda")
	require.NoError(t, err)
	assert.Equal(t, "NVDA removed from watchlist", msg)

	hist, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, broker.ActionBuy, hist[0].Action)
	assert.True(t, decimal.NewFromInt(1500).Equal(hist[0].Total))
}

func TestClient_HealthWithoutBody(t *testing.T) {
	var calls int32
	srv := fakeAPI(t, &calls)
	c := newClient(t, srv.URL, 0)

	err := c.Health(context.Background())
	var apiErr *broker.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Internal Server Error", apiErr.Message)
}

func TestClient_UnreachableAPI(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(t, url, time.Minute)
	ctx := context.Background()

	_, err := c.Quote(ctx, "AAPL")
	require.Error(t, err)
	assert.True(t, broker.IsNetwork(err))
	var netErr *broker.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "GET /stock/AAPL", netErr.Op)

	s, err := c.IndexQuote(ctx, "^DJI")
	require.NoError(t, err)
	assert.Equal(t, "Dow Jones", s.Symbol)
	assert.True(t, decimal.RequireFromString("-45.20").Equal(s.Change))

	indices := c.Indices(ctx)
	require.Len(t, indices, 3)
	assert.Equal(t, "S&P 500", indices[0].Symbol)
	assert.Equal(t, "NASDAQ", indices[2].Symbol)
}

func TestIndexQuote_APIErrorIsNotMasked(t *testing.T) {
	var calls int32
	srv := fakeAPI(t, &calls)
	c := newClient(t, srv.URL, 0)

	_, err := c.IndexQuote(context.Background(), "NOPE")
	assert.True(t, broker.IsNotFound(err))
}

func TestMockIndex_UnknownSymbol(t *testing.T) {
	s := broker.MockIndex("^FTSE")
	assert.Equal(t, "^FTSE", s.Symbol)
	assert.True(t, decimal.NewFromInt(100).Equal(s.Price))
	assert.Equal(t, int64(1000000), s.Volume)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	var calls int32
	srv := fakeAPI(t, &calls)
	c, err := broker.NewClient(broker.Options{BaseURL: srv.URL, RPS: 0.001, Burst: 1, Logger: quietLogger()})
	require.NoError(t, err)

	_, err = c.Quote(context.Background(), "AAPL")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Quote(ctx, "MSFT")
	assert.True(t, broker.IsNetwork(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUserID_Decoding(t *testing.T) {
	tests := []struct {
		raw  string
		want broker.UserID
	}{
		{`{"user_id": 7}`, "7"},
		{`{"user_id": "u-7"}`, "u-7"},
		{`{"user_id": null}`, ""},
	}
	for _, tt := range tests {
		var s broker.Session
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &s))
		assert.Equal(t, tt.want, s.UserID)
	}
}
