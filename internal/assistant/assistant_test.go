package assistant_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejoy/internal/assistant"
	mock_assistant "tradejoy/internal/assistant/mocks"
	"tradejoy/internal/broker"
	"tradejoy/internal/core"
	"tradejoy/internal/intent"
	"tradejoy/internal/log"
)

// sink records speech and notices in order.
type sink struct {
	mu      sync.Mutex
	speech  []string
	notices []assistant.Notice
}

func (s *sink) Speak(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speech = append(s.speech, text)
}

func (s *sink) Notify(n assistant.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *sink) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.speech...)
}

func (s *sink) lastNotice(t *testing.T) assistant.Notice {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.notices)
	return s.notices[len(s.notices)-1]
}

type fixture struct {
	a      *assistant.Assistant
	broker *mock_assistant.MockBroker
	sink   *sink
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

// loggedOut makes the broker report no session for the rest of the test.
func loggedOut(f fixture) {
	f.broker.EXPECT().LoggedIn().Return(false).AnyTimes()
}

func newTrading(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	b := mock_assistant.NewMockBroker(ctrl)
	s := &sink{}
	a, err := assistant.New(assistant.Options{
		Interpreter: intent.NewTrading(),
		Broker:      b,
		Speaker:     s,
		Notifier:    s,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	return fixture{a: a, broker: b, sink: s}
}

func aapl() broker.Stock {
	return broker.Stock{Symbol: "AAPL", Price: decimal.RequireFromString("175.50")}
}

func TestNotice_TTL(t *testing.T) {
	assert.Equal(t, 5*time.Second, assistant.Notice{Kind: assistant.NoticeSuccess}.TTL())
	assert.Equal(t, 5*time.Second, assistant.Notice{Kind: assistant.NoticeWarning}.TTL())
	assert.Equal(t, time.Duration(0), assistant.Notice{Kind: assistant.NoticeError}.TTL())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := assistant.New(assistant.Options{Speaker: &sink{}, Notifier: &sink{}})
	assert.Error(t, err)
	_, err = assistant.New(assistant.Options{Interpreter: intent.NewTrading()})
	assert.Error(t, err)
}

func TestAssistant_Start(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := mock_assistant.NewMockBroker(ctrl)
	speaker := mock_assistant.NewMockSpeaker(ctrl)
	notifier := mock_assistant.NewMockNotifier(ctrl)

	gomock.InOrder(
		b.EXPECT().Health(gomock.Any()).Return(&broker.NetworkError{Op: "GET /health", Err: errors.New("refused")}),
		notifier.EXPECT().Notify(gomock.Any()).Do(func(n assistant.Notice) {
			assert.Equal(t, assistant.NoticeInfo, n.Kind)
			assert.Contains(t, n.Message, "Demo Mode")
		}),
		speaker.EXPECT().Speak(assistant.SpeechWelcome),
	)

	a, err := assistant.New(assistant.Options{
		Interpreter: intent.NewTrading(),
		Broker:      b,
		Speaker:     speaker,
		Notifier:    notifier,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	a.Start(context.Background())
}

func TestAssistant_Navigate(t *testing.T) {
	tests := []struct {
		text    string
		section intent.Target
		speech  string
		message string
	}{
		{"show dashboard", intent.TargetDashboard, "Showing dashboard.", ""},
		{"Show portfolio please", intent.TargetPortfolio, "Showing portfolio.", "Please login to view your portfolio"},
		{"show watchlist", intent.TargetWatchlist, "Showing watchlist.", "Please login to view your watchlist"},
		{"show history", intent.TargetHistory, "Showing trade history.", "Please login to view your trade history"},
		{"go to trading", intent.TargetTrading, "Navigating to trading section.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f := newTrading(t)
			loggedOut(f)
			f.broker.EXPECT().Indices(gomock.Any()).Return(nil).AnyTimes()

			res, err := f.a.Handle(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.section, res.Section)
			assert.Equal(t, tt.section, f.a.Section())
			assert.Equal(t, []string{tt.speech}, f.sink.spoken())
			assert.Equal(t, tt.message, res.Message)
			assert.Nil(t, res.Portfolio)
		})
	}
}

func TestAssistant_NavigateLoadsSectionData(t *testing.T) {
	ctx := context.Background()
	portfolio := broker.Portfolio{
		Positions: []broker.Position{{Symbol: "AAPL", Quantity: 10}},
		Cash:      decimal.NewFromInt(1000),
	}

	t.Run("dashboard", func(t *testing.T) {
		f := newTrading(t)
		f.broker.EXPECT().LoggedIn().Return(true)
		f.broker.EXPECT().Indices(gomock.Any()).Return([]broker.Stock{broker.MockIndex("^GSPC")})
		f.broker.EXPECT().Portfolio(gomock.Any()).Return(portfolio, nil)

		res, err := f.a.Handle(ctx, "show dashboard")
		require.NoError(t, err)
		require.Len(t, res.Indices, 1)
		assert.Equal(t, "^GSPC", res.Indices[0].Symbol)
		require.NotNil(t, res.Portfolio)
		assert.Equal(t, portfolio, *res.Portfolio)
	})

	t.Run("dashboard logged out still shows indices", func(t *testing.T) {
		f := newTrading(t)
		loggedOut(f)
		f.broker.EXPECT().Indices(gomock.Any()).Return([]broker.Stock{broker.MockIndex("^DJI")})

		res, err := f.a.Handle(ctx, "show dashboard")
		require.NoError(t, err)
		assert.Len(t, res.Indices, 1)
		assert.Nil(t, res.Portfolio)
		assert.Empty(t, res.Message)
	})

	t.Run("portfolio", func(t *testing.T) {
		f := newTrading(t)
		f.broker.EXPECT().LoggedIn().Return(true)
		f.broker.EXPECT().Portfolio(gomock.Any()).Return(portfolio, nil)

		res, err := f.a.Handle(ctx, "show portfolio")
		require.NoError(t, err)
		require.NotNil(t, res.Portfolio)
		assert.Empty(t, res.Indices)
	})

	t.Run("watchlist", func(t *testing.T) {
		f := newTrading(t)
		f.broker.EXPECT().LoggedIn().Return(true)
		f.broker.EXPECT().Watchlist(gomock.Any()).Return([]broker.WatchItem{{Symbol: "TSLA"}}, nil)

		res, err := f.a.Handle(ctx, "show watchlist")
		require.NoError(t, err)
		assert.Equal(t, []broker.WatchItem{{Symbol: "TSLA"}}, res.Watchlist)
	})

	t.Run("history", func(t *testing.T) {
		f := newTrading(t)
		f.broker.EXPECT().LoggedIn().Return(true)
		f.broker.EXPECT().History(gomock.Any()).Return([]broker.TradeRecord{{Symbol: "AAPL", Action: "buy", Quantity: 10}}, nil)

		res, err := f.a.Handle(ctx, "show history")
		require.NoError(t, err)
		require.Len(t, res.History, 1)
		assert.Equal(t, "buy", res.History[0].Action)
	})

	t.Run("load failure keeps navigation", func(t *testing.T) {
		f := newTrading(t)
		f.broker.EXPECT().LoggedIn().Return(true)
		f.broker.EXPECT().History(gomock.Any()).
			Return(nil, &broker.APIError{Status: http.StatusInternalServerError, Message: "boom"})

		res, err := f.a.Handle(ctx, "show history")
		require.NoError(t, err)
		assert.Equal(t, intent.TargetHistory, f.a.Section())
		assert.Equal(t, "Error loading trade history", res.Message)
		assert.Nil(t, res.History)
	})

	t.Run("trading section loads nothing", func(t *testing.T) {
		f := newTrading(t)
		res, err := f.a.Handle(ctx, "go to trading")
		require.NoError(t, err)
		assert.Empty(t, res.Message)
	})
}

func TestAssistant_AuthForms(t *testing.T) {
	f := newTrading(t)
	ctx := context.Background()

	res, err := f.a.Handle(ctx, "login")
	require.NoError(t, err)
	assert.Equal(t, assistant.FormLogin, res.Form)

	res, err = f.a.Handle(ctx, "I want to register")
	require.NoError(t, err)
	assert.Equal(t, assistant.FormRegister, res.Form)

	assert.Equal(t, []string{"Opening login form.", "Opening registration form."}, f.sink.spoken())
}

func TestAssistant_Logout(t *testing.T) {
	f := newTrading(t)
	f.broker.EXPECT().Logout(gomock.Any()).Return(nil)

	res, err := f.a.Handle(context.Background(), "logout")
	require.NoError(t, err)
	assert.Equal(t, intent.TargetDashboard, res.Section)
	assert.Equal(t, []string{"Logging out."}, f.sink.spoken())
	assert.Equal(t, assistant.NoticeSuccess, f.sink.lastNotice(t).Kind)
}

func TestAssistant_Login(t *testing.T) {
	f := newTrading(t)
	ctx := context.Background()

	f.broker.EXPECT().Login(gomock.Any(), "alice", "pw").Return(broker.Session{UserID: "1"}, nil)
	require.NoError(t, f.a.Login(ctx, "alice", "pw"))
	assert.Equal(t, assistant.Notice{Kind: assistant.NoticeSuccess, Message: "Login successful!"}, f.sink.lastNotice(t))

	f.broker.EXPECT().Login(gomock.Any(), "alice", "bad").
		Return(broker.Session{}, &broker.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"})
	require.Error(t, f.a.Login(ctx, "alice", "bad"))
	assert.Equal(t, assistant.Notice{Kind: assistant.NoticeError, Message: "Invalid credentials"}, f.sink.lastNotice(t))

	f.broker.EXPECT().Login(gomock.Any(), "alice", "pw").
		Return(broker.Session{}, &broker.NetworkError{Op: "POST /login", Err: errors.New("refused")})
	require.Error(t, f.a.Login(ctx, "alice", "pw"))
	assert.Equal(t, "Network error. Please try again.", f.sink.lastNotice(t).Message)
}

func TestAssistant_Register(t *testing.T) {
	f := newTrading(t)
	ctx := context.Background()

	f.broker.EXPECT().Register(gomock.Any(), "bob", "bob@example.com", "pw").Return(broker.Session{UserID: "7"}, nil)
	require.NoError(t, f.a.Register(ctx, "bob", "bob@example.com", "pw"))
	assert.Equal(t, assistant.Notice{Kind: assistant.NoticeSuccess, Message: "Registration successful!"}, f.sink.lastNotice(t))

	f.broker.EXPECT().Register(gomock.Any(), "bob", "", "pw").
		Return(broker.Session{}, &broker.APIError{Status: http.StatusConflict, Message: "Username already exists"})
	require.Error(t, f.a.Register(ctx, "bob", "", "pw"))
	assert.Equal(t, assistant.Notice{Kind: assistant.NoticeError, Message: "Username already exists"}, f.sink.lastNotice(t))

	f.broker.EXPECT().Register(gomock.Any(), "bob", "", "pw").Return(broker.Session{}, errors.New("decode"))
	require.Error(t, f.a.Register(ctx, "bob", "", "pw"))
	assert.Equal(t, "Registration failed", f.sink.lastNotice(t).Message)

	noBroker, err := assistant.New(assistant.Options{Interpreter: intent.NewTrading(), Speaker: &sink{}, Notifier: &sink{}})
	require.NoError(t, err)
	assert.Error(t, noBroker.Register(ctx, "bob", "", "pw"))
}

func TestAssistant_Unrecognized(t *testing.T) {
	f := newTrading(t)
	res, err := f.a.Handle(context.Background(), "make me a sandwich")
	require.NoError(t, err)
	assert.Equal(t, intent.KindUnrecognized, res.Intent.Kind())
	assert.Equal(t, []string{assistant.SpeechNotUnderstood}, f.sink.spoken())
}

func TestAssistant_Search(t *testing.T) {
	f := newTrading(t)
	f.broker.EXPECT().Quote(gomock.Any(), "AAPL").Return(aapl(), nil)

	res, err := f.a.Handle(context.Background(), "search for aapl")
	require.NoError(t, err)
	require.NotNil(t, res.Stock)
	assert.Equal(t, "AAPL", res.Stock.Symbol)
	assert.Equal(t, []string{"Searching for AAPL."}, f.sink.spoken())

	cur, ok := f.a.CurrentStock()
	require.True(t, ok)
	assert.Equal(t, "AAPL", cur.Symbol)
}

func TestAssistant_SearchNotFound(t *testing.T) {
	f := newTrading(t)
	f.broker.EXPECT().Quote(gomock.Any(), "ZZZ").
		Return(broker.Stock{}, &broker.APIError{Status: http.StatusNotFound, Message: "Stock not found"})

	_, err := f.a.Handle(context.Background(), "find stock zzz")
	require.Error(t, err)
	assert.Equal(t, assistant.Notice{Kind: assistant.NoticeError, Message: "Stock not found"}, f.sink.lastNotice(t))
	_, ok := f.a.CurrentStock()
	assert.False(t, ok)
}

func TestAssistant_StaleSearchIsDropped(t *testing.T) {
	f := newTrading(t)
	started := make(chan struct{})
	release := make(chan struct{})

	f.broker.EXPECT().Quote(gomock.Any(), "SLOW").DoAndReturn(func(ctx context.Context, symbol string) (broker.Stock, error) {
		close(started)
		<-release
		return broker.Stock{Symbol: "SLOW"}, nil
	})
	f.broker.EXPECT().Quote(gomock.Any(), "FAST").Return(broker.Stock{Symbol: "FAST"}, nil)

	ctx := context.Background()
	done := make(chan assistant.Result)
	go func() {
		res, _ := f.a.Execute(ctx, intent.SearchStock{Symbol: "SLOW"})
		done <- res
	}()

	<-started
	res, err := f.a.Execute(ctx, intent.SearchStock{Symbol: "FAST"})
	require.NoError(t, err)
	require.NotNil(t, res.Stock)
	close(release)

	slow := <-done
	assert.Nil(t, slow.Stock, "an older search must not report a stock")
	cur, ok := f.a.CurrentStock()
	require.True(t, ok)
	assert.Equal(t, "FAST", cur.Symbol)
}

func TestAssistant_Watchlist(t *testing.T) {
	f := newTrading(t)
	ctx := context.Background()

	f.broker.EXPECT().LoggedIn().Return(false)
	_, err := f.a.Handle(ctx, "add tsla to watchlist")
	require.NoError(t, err)
	assert.Equal(t, "Please login to add to watchlist", f.sink.lastNotice(t).Message)

	f.broker.EXPECT().LoggedIn().Return(true).Times(2)
	f.broker.EXPECT().AddToWatchlist(gomock.Any(), "TSLA").Return("TSLA added to watchlist", nil)
	f.broker.EXPECT().RemoveFromWatchlist(gomock.Any(), "NVDA").
		Return("", &broker.APIError{Status: http.StatusBadRequest, Message: "Not in watchlist"})

	res, err := f.a.Handle(ctx, "add tsla to my watchlist")
	require.NoError(t, err)
	assert.Equal(t, "TSLA added to watchlist", res.Message)

	_, err = f.a.Handle(ctx, "remove nvda from watchlist")
	require.Error(t, err)
	assert.Equal(t, assistant.Notice{Kind: assistant.NoticeError, Message: "Not in watchlist"}, f.sink.lastNotice(t))

	assert.Equal(t, []string{"Adding TSLA to your watchlist.", "Removing NVDA from your watchlist."}, f.sink.spoken())
}

func TestAssistant_TradeRequiresLogin(t *testing.T) {
	f := newTrading(t)
	f.broker.EXPECT().LoggedIn().Return(false)

	_, err := f.a.Handle(context.Background(), "buy 10 AAPL")
	require.NoError(t, err)
	assert.Equal(t, []string{assistant.SpeechNeedLogin}, f.sink.spoken())
}

func TestAssistant_Trade(t *testing.T) {
	f := newTrading(t)
	f.broker.EXPECT().LoggedIn().Return(true)
	f.broker.EXPECT().Quote(gomock.Any(), "AAPL").Return(aapl(), nil)
	f.broker.EXPECT().Trade(gomock.Any(), broker.TradeRequest{Symbol: "AAPL", Action: broker.ActionBuy, Quantity: 10}).
		Return("Bought 10 shares of AAPL", nil)

	res, err := f.a.Handle(context.Background(), "buy 10 shares of aapl")
	require.NoError(t, err)
	assert.Equal(t, "Bought 10 shares of AAPL", res.Message)
	require.NotNil(t, res.Stock)
	assert.Equal(t, []string{"Buying 10 shares of AAPL."}, f.sink.spoken())
	assert.Equal(t, assistant.NoticeSuccess, f.sink.lastNotice(t).Kind)
}

func TestAssistant_TradeFailures(t *testing.T) {
	tests := []struct {
		name     string
		quoteErr error
		speech   string
	}{
		{"unknown symbol", &broker.APIError{Status: http.StatusNotFound, Message: "Stock not found"}, "Could not find stock MSFT."},
		{"api down", &broker.NetworkError{Op: "GET /stock/MSFT", Err: errors.New("refused")}, assistant.SpeechTradeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTrading(t)
			f.broker.EXPECT().LoggedIn().Return(true)
			f.broker.EXPECT().Quote(gomock.Any(), "MSFT").Return(broker.Stock{}, tt.quoteErr)

			_, err := f.a.Handle(context.Background(), "sell 5 msft")
			require.Error(t, err)
			assert.Equal(t, []string{tt.speech}, f.sink.spoken())
		})
	}
}

func TestAssistant_TradeRejectedByAPI(t *testing.T) {
	f := newTrading(t)
	f.broker.EXPECT().LoggedIn().Return(true)
	f.broker.EXPECT().Quote(gomock.Any(), "AAPL").Return(aapl(), nil)
	f.broker.EXPECT().Trade(gomock.Any(), gomock.Any()).
		Return("", &broker.APIError{Status: http.StatusBadRequest, Message: "Insufficient shares"})

	_, err := f.a.Handle(context.Background(), "sell 500 aapl")
	require.Error(t, err)
	assert.Equal(t, []string{"Selling 500 shares of AAPL."}, f.sink.spoken())
	assert.Equal(t, assistant.Notice{Kind: assistant.NoticeError, Message: "Insufficient shares"}, f.sink.lastNotice(t))
}

func TestAssistant_MalformedTrade(t *testing.T) {
	f := newTrading(t)
	_, err := f.a.Handle(context.Background(), "buy ten apple")
	require.ErrorIs(t, err, intent.ErrMalformedTrade)
	assert.Equal(t, []string{assistant.SpeechInvalidQuantity}, f.sink.spoken())
	n := f.sink.lastNotice(t)
	assert.Equal(t, assistant.NoticeWarning, n.Kind)
	assert.Contains(t, n.Message, "buy 10 AAPL")
}

func TestAssistant_Listen(t *testing.T) {
	f := newTrading(t)
	loggedOut(f)
	ctrl := gomock.NewController(t)
	tr := mock_assistant.NewMockTranscriber(ctrl)

	entered := make(chan struct{})
	release := make(chan struct{})
	tr.EXPECT().Transcribe(gomock.Any()).DoAndReturn(func(ctx context.Context) (string, error) {
		close(entered)
		<-release
		return "show portfolio", nil
	})

	ctx := context.Background()
	done := make(chan error)
	go func() {
		_, err := f.a.Listen(ctx, tr)
		done <- err
	}()

	<-entered
	_, err := f.a.Listen(ctx, tr)
	assert.ErrorIs(t, err, assistant.ErrAlreadyListening)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, intent.TargetPortfolio, f.a.Section())
}

func TestAssistant_ListenErrors(t *testing.T) {
	f := newTrading(t)
	loggedOut(f)
	ctrl := gomock.NewController(t)
	tr := mock_assistant.NewMockTranscriber(ctrl)
	ctx := context.Background()

	_, err := f.a.Listen(ctx, nil)
	assert.ErrorIs(t, err, assistant.ErrNotSupported)
	assert.Equal(t, []string{assistant.SpeechNotSupported}, f.sink.spoken())

	tr.EXPECT().Transcribe(gomock.Any()).Return("", assistant.ErrPermissionDenied)
	_, err = f.a.Listen(ctx, tr)
	assert.ErrorIs(t, err, assistant.ErrPermissionDenied)
	assert.Equal(t, assistant.NoticeError, f.sink.lastNotice(t).Kind)

	// the guard is released after a failed session
	tr.EXPECT().Transcribe(gomock.Any()).Return("show history", nil)
	_, err = f.a.Listen(ctx, tr)
	assert.NoError(t, err)
}

func TestAssistant_LedgerMode(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := mock_assistant.NewMockRecorder(ctrl)
	s := &sink{}
	a, err := assistant.New(assistant.Options{
		Interpreter: intent.NewLedger(nil),
		Recorder:    rec,
		Speaker:     s,
		Notifier:    s,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)

	want := core.Entry{Kind: core.KindSale, Amount: core.MustMoney("120"), Description: "bread", Category: core.CategoryProductSale}
	rec.EXPECT().Record(gomock.Any(), want).Return(core.Transaction{
		ID: 1, Kind: want.Kind, Amount: want.Amount, Description: want.Description, Category: want.Category,
	}, nil)

	res, err := a.Handle(context.Background(), "I sold bread for 120 rands")
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, int64(1), res.Transaction.ID)
	assert.Equal(t, []string{"Recorded sale of 120.00 for bread."}, s.spoken())

	_, err = a.Handle(context.Background(), "sold some bread")
	require.ErrorIs(t, err, intent.ErrNoAmount)
	n := s.lastNotice(t)
	assert.Equal(t, assistant.NoticeWarning, n.Kind)
	assert.True(t, strings.HasPrefix(n.Message, "no amount found"))
}
