// Package assistant executes interpreted voice commands against the trading
// API and the ledger, and reports back through speech and notices.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"tradejoy/internal/broker"
	"tradejoy/internal/core"
	"tradejoy/internal/intent"
	"tradejoy/internal/log"
)

const (
	SpeechWelcome         = "Welcome to the dashboard. How can I assist you today?"
	SpeechNotUnderstood   = "Sorry, I didn't understand that command. Please try again."
	SpeechNeedLogin       = "Please log in to trade."
	SpeechInvalidQuantity = "Please specify a valid number of shares."
	SpeechTradeFailed     = "There was an issue processing your trade. Please try again."
	SpeechNotSupported    = "Speech recognition is not supported in your browser."

	msgNetwork   = "Network error. Please try again."
	msgDemoMode  = "Demo Mode: Backend server not connected. Some features may be limited."
	msgNoMic     = "Microphone access was denied."
	msgLoggedOut = "Logged out successfully"
)

var navigationSpeech = map[intent.Target]string{
	intent.TargetDashboard: "Showing dashboard.",
	intent.TargetPortfolio: "Showing portfolio.",
	intent.TargetWatchlist: "Showing watchlist.",
	intent.TargetHistory:   "Showing trade history.",
	intent.TargetTrading:   "Navigating to trading section.",
}

// Form names an authentication form the front-end should open.
type Form string

const (
	FormNone     Form = ""
	FormLogin    Form = "login"
	FormRegister Form = "register"
)

// Result describes what a command changed. Zero fields were not touched.
// Navigation fills the data the selected section shows.
type Result struct {
	Intent      intent.Intent
	Section     intent.Target
	Form        Form
	Stock       *broker.Stock
	Transaction *core.Transaction
	Message     string

	Indices   []broker.Stock
	Portfolio *broker.Portfolio
	Watchlist []broker.WatchItem
	History   []broker.TradeRecord
}

// Options wires an Assistant. Interpreter, Speaker and Notifier are
// required; Broker and Recorder enable trading and ledger commands.
type Options struct {
	Interpreter *intent.Interpreter
	Broker      Broker
	Recorder    Recorder
	Speaker     Speaker
	Notifier    Notifier
	Logger      *log.Logger
}

type Assistant struct {
	interp   *intent.Interpreter
	broker   Broker
	recorder Recorder
	speaker  Speaker
	notifier Notifier
	logger   *log.Logger

	listening atomic.Bool

	mu        sync.Mutex
	section   intent.Target
	current   *broker.Stock
	searchSeq uint64
}

func New(opts Options) (*Assistant, error) {
	if opts.Interpreter == nil {
		return nil, errors.New("assistant: missing interpreter")
	}
	if opts.Speaker == nil || opts.Notifier == nil {
		return nil, errors.New("assistant: missing speaker or notifier")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Assistant{
		interp:   opts.Interpreter,
		broker:   opts.Broker,
		recorder: opts.Recorder,
		speaker:  opts.Speaker,
		notifier: opts.Notifier,
		logger:   logger.WithComponent(log.ComponentAssistant),
		section:  intent.TargetDashboard,
	}, nil
}

// Start greets the user and warns when the trading API is down.
func (a *Assistant) Start(ctx context.Context) {
	if a.broker != nil {
		if err := a.broker.Health(ctx); err != nil {
			a.logger.WarnContext(ctx, "Trading API health check failed", log.FieldError, err)
			a.notify(NoticeInfo, msgDemoMode)
		}
	}
	a.speaker.Speak(SpeechWelcome)
}

// Section is the view the last navigation selected.
func (a *Assistant) Section() intent.Target {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.section
}

// CurrentStock is the result of the newest completed search.
func (a *Assistant) CurrentStock() (broker.Stock, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return broker.Stock{}, false
	}
	return *a.current, true
}

// Listen runs one recognition session and handles its transcript. Only one
// session may be active at a time.
func (a *Assistant) Listen(ctx context.Context, t Transcriber) (Result, error) {
	if t == nil {
		a.speaker.Speak(SpeechNotSupported)
		return Result{}, ErrNotSupported
	}
	if !a.listening.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyListening
	}
	defer a.listening.Store(false)

	transcript, err := t.Transcribe(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			a.notify(NoticeError, msgNoMic)
		} else {
			a.notify(NoticeError, "Error: "+err.Error())
		}
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}
	return a.Handle(ctx, strings.TrimSpace(transcript))
}

// Handle interprets text and executes the resulting command.
func (a *Assistant) Handle(ctx context.Context, text string) (Result, error) {
	in, err := a.interp.Interpret(text)
	a.logger.DebugContext(ctx, "Utterance interpreted", log.FieldIntent, string(in.Kind()), "mode", a.interp.Mode().String())
	if err != nil {
		var pe *intent.ParseError
		if errors.As(err, &pe) {
			a.reportParseError(pe)
		}
		return Result{Intent: in}, err
	}
	return a.Execute(ctx, in)
}

func (a *Assistant) reportParseError(pe *intent.ParseError) {
	if errors.Is(pe, intent.ErrMalformedTrade) {
		a.speaker.Speak(SpeechInvalidQuantity)
	} else {
		a.speaker.Speak(SpeechNotUnderstood)
	}
	msg := pe.Reason.Error()
	if len(pe.Suggestions) > 0 {
		msg += ". " + strings.Join(pe.Suggestions, " ")
	}
	a.notify(NoticeWarning, msg)
}

// Execute carries out one command.
func (a *Assistant) Execute(ctx context.Context, in intent.Intent) (Result, error) {
	res := Result{Intent: in}
	var err error
	switch v := in.(type) {
	case intent.Navigate:
		err = a.navigate(ctx, v, &res)
	case intent.Authenticate:
		err = a.authenticate(ctx, v, &res)
	case intent.SearchStock:
		a.speaker.Speak(fmt.Sprintf("Searching for %s.", v.Symbol))
		err = a.searchStock(ctx, v.Symbol, &res)
	case intent.WatchlistOp:
		err = a.watchlist(ctx, v, &res)
	case intent.Trade:
		err = a.trade(ctx, v, &res)
	case intent.RecordTransaction:
		err = a.record(ctx, v, &res)
	default:
		a.speaker.Speak(SpeechNotUnderstood)
	}
	return res, err
}

func (a *Assistant) navigate(ctx context.Context, v intent.Navigate, res *Result) error {
	speech, ok := navigationSpeech[v.Target]
	if !ok {
		a.speaker.Speak(SpeechNotUnderstood)
		return fmt.Errorf("unknown section %q", v.Target)
	}
	a.mu.Lock()
	a.section = v.Target
	a.mu.Unlock()
	res.Section = v.Target
	a.speaker.Speak(speech)
	a.loadSection(ctx, v.Target, res)
	return nil
}

// loadSection fetches what target displays. Account data needs a session;
// without one, or when the API fails, res.Message says why the section is
// empty. Navigation itself never fails on a load error.
func (a *Assistant) loadSection(ctx context.Context, target intent.Target, res *Result) {
	if a.broker == nil {
		return
	}
	if target == intent.TargetDashboard {
		res.Indices = a.broker.Indices(ctx)
	}

	var what string
	switch target {
	case intent.TargetDashboard, intent.TargetPortfolio:
		what = "portfolio"
	case intent.TargetWatchlist:
		what = "watchlist"
	case intent.TargetHistory:
		what = "trade history"
	default:
		return
	}
	if !a.broker.LoggedIn() {
		if target != intent.TargetDashboard {
			res.Message = "Please login to view your " + what
		}
		return
	}

	var err error
	switch target {
	case intent.TargetDashboard, intent.TargetPortfolio:
		var p broker.Portfolio
		if p, err = a.broker.Portfolio(ctx); err == nil {
			res.Portfolio = &p
		}
	case intent.TargetWatchlist:
		res.Watchlist, err = a.broker.Watchlist(ctx)
	case intent.TargetHistory:
		res.History, err = a.broker.History(ctx)
	}
	if err != nil {
		a.logger.WarnContext(ctx, "Section data failed to load", "section", string(target), log.FieldError, err)
		res.Message = "Error loading " + what
	}
}

func (a *Assistant) authenticate(ctx context.Context, v intent.Authenticate, res *Result) error {
	switch v.Action {
	case intent.AuthLogin:
		res.Form = FormLogin
		a.speaker.Speak("Opening login form.")
	case intent.AuthRegister:
		res.Form = FormRegister
		a.speaker.Speak("Opening registration form.")
	case intent.AuthLogout:
		a.speaker.Speak("Logging out.")
		if a.broker == nil {
			return errNoBroker
		}
		if err := a.broker.Logout(ctx); err != nil {
			a.logger.WarnContext(ctx, "Logout failed", log.FieldError, err)
			return err
		}
		a.mu.Lock()
		a.section = intent.TargetDashboard
		a.mu.Unlock()
		res.Section = intent.TargetDashboard
		res.Message = msgLoggedOut
		a.notify(NoticeSuccess, msgLoggedOut)
	}
	return nil
}

// Login submits the login form.
func (a *Assistant) Login(ctx context.Context, username, password string) error {
	if a.broker == nil {
		return errNoBroker
	}
	if _, err := a.broker.Login(ctx, username, password); err != nil {
		a.notifyFailure(err, "Login failed")
		return err
	}
	a.notify(NoticeSuccess, "Login successful!")
	return nil
}

// Register submits the registration form. A successful registration also
// starts a session.
func (a *Assistant) Register(ctx context.Context, username, email, password string) error {
	if a.broker == nil {
		return errNoBroker
	}
	if _, err := a.broker.Register(ctx, username, email, password); err != nil {
		a.notifyFailure(err, "Registration failed")
		return err
	}
	a.notify(NoticeSuccess, "Registration successful!")
	return nil
}

var errNoBroker = errors.New("assistant: trading API not configured")

// search looks up symbol and makes it the current stock unless a newer
// search was started meanwhile. The quote is returned either way.
func (a *Assistant) search(ctx context.Context, symbol string) (broker.Stock, bool, error) {
	a.mu.Lock()
	a.searchSeq++
	seq := a.searchSeq
	a.mu.Unlock()

	s, err := a.broker.Quote(ctx, symbol)

	a.mu.Lock()
	defer a.mu.Unlock()
	if seq != a.searchSeq {
		a.logger.DebugContext(ctx, "Stale search result dropped", log.FieldSymbol, symbol)
		return s, false, err
	}
	if err == nil {
		a.current = &s
	}
	return s, true, err
}

func (a *Assistant) searchStock(ctx context.Context, symbol string, res *Result) error {
	if a.broker == nil {
		return errNoBroker
	}
	s, latest, err := a.search(ctx, symbol)
	if err != nil {
		if latest {
			a.notifyFailure(err, "Stock not found")
		}
		return err
	}
	if latest {
		res.Stock = &s
		res.Section = intent.TargetTrading
	}
	return nil
}

func (a *Assistant) watchlist(ctx context.Context, v intent.WatchlistOp, res *Result) error {
	if a.broker == nil {
		return errNoBroker
	}
	var (
		msg string
		err error
	)
	switch v.Op {
	case intent.WatchAdd:
		if !a.broker.LoggedIn() {
			a.notify(NoticeError, "Please login to add to watchlist")
			return nil
		}
		a.speaker.Speak(fmt.Sprintf("Adding %s to your watchlist.", v.Symbol))
		msg, err = a.broker.AddToWatchlist(ctx, v.Symbol)
		if err != nil {
			a.notifyFailure(err, "Failed to add to watchlist")
			return err
		}
	case intent.WatchRemove:
		if !a.broker.LoggedIn() {
			a.notify(NoticeError, "Please login to modify watchlist")
			return nil
		}
		a.speaker.Speak(fmt.Sprintf("Removing %s from your watchlist.", v.Symbol))
		msg, err = a.broker.RemoveFromWatchlist(ctx, v.Symbol)
		if err != nil {
			a.notifyFailure(err, "Failed to remove from watchlist")
			return err
		}
	default:
		return fmt.Errorf("unknown watchlist operation %q", v.Op)
	}
	res.Message = msg
	a.notify(NoticeSuccess, msg)
	return nil
}

// trade searches the symbol and places the order against the quote that
// search returned, not whatever is current by the time it completes.
func (a *Assistant) trade(ctx context.Context, v intent.Trade, res *Result) error {
	if a.broker == nil {
		return errNoBroker
	}
	if !a.broker.LoggedIn() {
		a.speaker.Speak(SpeechNeedLogin)
		return nil
	}
	if v.Quantity <= 0 {
		a.speaker.Speak(SpeechInvalidQuantity)
		return nil
	}

	stock, latest, err := a.search(ctx, v.Symbol)
	if err != nil {
		if broker.IsNotFound(err) {
			a.speaker.Speak(fmt.Sprintf("Could not find stock %s.", v.Symbol))
			return err
		}
		a.speaker.Speak(SpeechTradeFailed)
		return err
	}
	if latest {
		res.Stock = &stock
	}

	a.speaker.Speak(fmt.Sprintf("%s %d shares of %s.", tradeVerb(v.Action), v.Quantity, stock.Symbol))
	msg, err := a.broker.Trade(ctx, broker.TradeRequest{
		Symbol:   stock.Symbol,
		Action:   string(v.Action),
		Quantity: v.Quantity,
	})
	if err != nil {
		a.notifyFailure(err, "Trade failed")
		return err
	}
	res.Message = msg
	a.notify(NoticeSuccess, msg)
	return nil
}

func tradeVerb(action intent.TradeAction) string {
	if action == intent.Sell {
		return "Selling"
	}
	return "Buying"
}

func (a *Assistant) record(ctx context.Context, v intent.RecordTransaction, res *Result) error {
	if a.recorder == nil {
		a.speaker.Speak(SpeechNotUnderstood)
		return errors.New("assistant: ledger not configured")
	}
	tx, err := a.recorder.Record(ctx, v.Entry())
	if err != nil {
		a.notify(NoticeError, err.Error())
		return err
	}
	res.Transaction = &tx
	res.Message = fmt.Sprintf("Recorded %s of %s for %s", tx.Kind.String(), tx.Amount.String(), tx.Description)
	a.speaker.Speak(res.Message + ".")
	a.notify(NoticeSuccess, res.Message)
	return nil
}

// notifyFailure shows the server's message for API errors, a generic
// network message for transport failures and fallback otherwise.
func (a *Assistant) notifyFailure(err error, fallback string) {
	var apiErr *broker.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		a.notify(NoticeError, apiErr.Message)
	case broker.IsNetwork(err):
		a.notify(NoticeError, msgNetwork)
	default:
		a.notify(NoticeError, fallback)
	}
}

func (a *Assistant) notify(kind NoticeKind, msg string) {
	a.notifier.Notify(Notice{Kind: kind, Message: msg})
}
