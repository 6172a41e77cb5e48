package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejoy/internal/config"
	"tradejoy/internal/core"
	"tradejoy/internal/ledger"
	"tradejoy/internal/log"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	return log.New(log.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)})
}

func testConfig() *config.Config {
	return &config.Config{
		DataBackend:    config.BackendMemory,
		LedgerTimezone: "UTC",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

func newTestApp(l *ledger.Ledger) *app {
	return &app{cfg: testConfig(), logger: quietLogger(), ledger: l}
}

func newTestLedger() *ledger.Ledger {
	return ledger.New(ledger.Options{
		Clock:  func() time.Time { return testNow },
		Logger: quietLogger(),
	})
}

func run(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(a)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(out), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &m), raw)
		lines = append(lines, m)
	}
	return lines
}

func TestInterpret_TradingArgs(t *testing.T) {
	out, err := run(t, newTestApp(nil), "", "interpret", "buy 10 AAPL", "show portfolio")
	require.NoError(t, err)

	lines := decodeLines(t, out)
	require.Len(t, lines, 2)

	assert.Equal(t, "trading", lines[0]["mode"])
	assert.Equal(t, "trade", lines[0]["kind"])
	trade := lines[0]["intent"].(map[string]any)
	assert.Equal(t, float64(10), trade["quantity"])
	assert.Equal(t, "AAPL", trade["symbol"])
	assert.NotContains(t, lines[0], "error")

	assert.Equal(t, "navigate", lines[1]["kind"])
	assert.Equal(t, "portfolio", lines[1]["intent"].(map[string]any)["target"])
}

func TestInterpret_LedgerStdin(t *testing.T) {
	stdin := "I sold bread for 120 rands\n\n  buy 10\n"
	out, err := run(t, newTestApp(nil), stdin, "interpret", "--mode", "ledger")
	require.NoError(t, err)

	lines := decodeLines(t, out)
	require.Len(t, lines, 2, "blank lines are skipped")

	assert.Equal(t, "ledger", lines[0]["mode"])
	assert.Equal(t, "record_transaction", lines[0]["kind"])
	rec := lines[0]["intent"].(map[string]any)
	assert.Equal(t, "sale", rec["type"])
	assert.Equal(t, "bread", rec["description"])

	assert.Equal(t, "buy 10", lines[1]["text"])
	assert.Equal(t, "unrecognized", lines[1]["kind"])
	assert.NotEmpty(t, lines[1]["error"])
	assert.NotEmpty(t, lines[1]["suggestions"])
}

func TestInterpret_UnknownMode(t *testing.T) {
	_, err := run(t, newTestApp(nil), "", "interpret", "--mode", "poetry", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "poetry"`)
}

func TestAssistant_LedgerModeRecords(t *testing.T) {
	l := newTestLedger()
	stdin := "I sold bread for 120 rands\nspent 45 on bus fare\ntell me a joke\n"

	out, err := run(t, newTestApp(l), stdin, "assistant", "--mode", "ledger")
	require.NoError(t, err)

	assert.Contains(t, out, "> Welcome to the dashboard.")
	assert.Contains(t, out, "> Recorded sale of 120.00 for bread.")
	assert.Contains(t, out, "[success] Recorded expense of 45.00 for bus fare")
	assert.Contains(t, out, "[warning] ")

	require.Equal(t, 2, l.Len())
	totals := l.Totals()
	assert.Equal(t, core.MustMoney("75"), totals.NetProfit)
}

func TestAssistant_TradingModeNavigatesWithoutBroker(t *testing.T) {
	out, err := run(t, newTestApp(nil), "show portfolio\nlogin\n", "assistant")
	require.NoError(t, err)

	assert.Contains(t, out, "> Showing portfolio.")
	assert.Contains(t, out, "> Opening login form.")
	assert.NotContains(t, out, "Demo Mode", "no health check without a trading API")
}

func TestAssistant_TradingAPI(t *testing.T) {
	var unhealthy atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cret", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":42}`))
	})
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body.Email == "taken@example.com" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Username already exists"}`))
			return
		}
		_, _ = w.Write([]byte(`{"user_id":43}`))
	})
	mux.HandleFunc("GET /history", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"history":[{"timestamp":"2025-03-10 10:00","symbol":"AAPL","action":"buy","quantity":10,"price":175.5,"total":1755}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	newApp := func() *app {
		a := newTestApp(nil)
		a.cfg.TradingAPIURL = srv.URL
		a.cfg.TradingAPITimeout = 2 * time.Second
		a.cfg.QuoteCacheTTL = time.Minute
		return a
	}

	out, err := run(t, newApp(), "show history\n", "assistant", "--username", "demo", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "[success] Login successful!")
	assert.Contains(t, out, "> Showing trade history.")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "1755.00")
	assert.NotContains(t, out, "Demo Mode")

	out, err = run(t, newApp(), "show watchlist\n", "assistant")
	require.NoError(t, err)
	assert.Contains(t, out, "(Please login to view your watchlist)")

	out, err = run(t, newApp(), "", "assistant", "--username", "new", "--email", "new@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "[success] Registration successful!")

	out, err = run(t, newApp(), "", "assistant", "--username", "new", "--email", "taken@example.com", "--password", "pw")
	require.Error(t, err)
	assert.Contains(t, out, "[error] Username already exists")

	unhealthy.Store(true)
	out, err = run(t, newApp(), "", "assistant")
	require.NoError(t, err)
	assert.Contains(t, out, "[info] Demo Mode")
}

func TestLineTranscriber(t *testing.T) {
	tr := newLineTranscriber(strings.NewReader("\n  first  \n\nsecond"))
	ctx := context.Background()

	got, err := tr.Transcribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = tr.Transcribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = tr.Transcribe(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStats(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	_, err := l.Record(ctx, core.Entry{Kind: core.KindSale, Amount: core.MustMoney("120"), Description: "bread", Category: core.CategoryProductSale})
	require.NoError(t, err)
	_, err = l.Record(ctx, core.Entry{Kind: core.KindExpense, Amount: core.MustMoney("45"), Description: "bus fare", Category: core.CategoryTransport})
	require.NoError(t, err)

	out, err := run(t, newTestApp(l), "", "stats", "--days", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "2025-03-08")
	assert.Contains(t, out, "2025-03-10")
	assert.NotContains(t, out, "2025-03-07")
	assert.Contains(t, out, "product-sale: 120.00")
	assert.Contains(t, out, "Transactions: 2")
	assert.Contains(t, out, "Tip: Good work!")
}

func TestStats_RejectsDays(t *testing.T) {
	_, err := run(t, newTestApp(newTestLedger()), "", "stats", "--days", "0")
	require.Error(t, err)
}

func TestExport_WritesWorkbook(t *testing.T) {
	l := newTestLedger()
	_, err := l.Record(context.Background(), core.Entry{Kind: core.KindSale, Amount: core.MustMoney("120"), Description: "bread", Category: core.CategoryProductSale})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	out, err := run(t, newTestApp(l), "", "export", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 transactions to "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestLedgerPersistsAcrossRuns(t *testing.T) {
	cfg := testConfig()
	cfg.DataBackend = config.BackendSQLite
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "tradejoy.db")

	first := &app{cfg: cfg, logger: quietLogger()}
	_, err := run(t, first, "sold 20\n", "assistant", "--mode", "ledger")
	require.NoError(t, err)
	assert.Nil(t, first.journal, "journal is closed after the command")

	second := &app{cfg: cfg, logger: quietLogger()}
	out, err := run(t, second, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Transactions: 1")
}

func TestProfile_UpdatesTargetUsedByStats(t *testing.T) {
	cfg := testConfig()
	cfg.DataBackend = config.BackendSQLite
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "tradejoy.db")

	out, err := run(t, &app{cfg: cfg, logger: quietLogger()}, "", "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "Daily target:  500.00")

	out, err = run(t, &app{cfg: cfg, logger: quietLogger()}, "", "profile", "--name", "Mama's Kitchen", "--daily-target", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Business name: Mama's Kitchen")
	assert.Contains(t, out, "Daily target:  10.00")
	assert.Contains(t, out, "Weekly target: 3500.00")

	_, err = run(t, &app{cfg: cfg, logger: quietLogger()}, "sold 20\n", "assistant", "--mode", "ledger")
	require.NoError(t, err)

	out, err = run(t, &app{cfg: cfg, logger: quietLogger()}, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Tip: Excellent!", "the saved 10.00 target is below today's 20.00 profit")

	_, err = run(t, &app{cfg: cfg, logger: quietLogger()}, "", "profile", "--daily-target", "0")
	assert.Error(t, err)
}

func TestBuildLedger_SeedsDemoDataWhenEmpty(t *testing.T) {
	cfg := testConfig()
	cfg.LedgerSeedDemo = true

	l, err := BuildLedger(context.Background(), cfg, quietLogger(), nil, nil)
	require.NoError(t, err)
	assert.Positive(t, l.Len())
}

func TestLedgerInterpreter_KeywordsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sale: [sold, vendido]\n"), 0o600))

	cfg := testConfig()
	cfg.LedgerKeywordsFile = path
	interp, err := LedgerInterpreter(cfg)
	require.NoError(t, err)

	line := interpretLine(interp, "vendido 50 for mangoes")
	assert.Equal(t, "record_transaction", string(line.Kind))

	cfg.LedgerKeywordsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = LedgerInterpreter(cfg)
	assert.Error(t, err)
}
