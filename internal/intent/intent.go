// Package intent turns free-text utterances into typed commands.
//
// An Interpreter evaluates an ordered list of rules and returns the Intent
// produced by the first rule that matches. Interpretation is a pure function
// of the input text; executing the Intent is the caller's job.
package intent

import "tradejoy/internal/core"

// Kind names an Intent variant.
type Kind string

const (
	KindNavigate          Kind = "navigate"
	KindAuthenticate      Kind = "authenticate"
	KindSearchStock       Kind = "search_stock"
	KindWatchlist         Kind = "watchlist"
	KindTrade             Kind = "trade"
	KindRecordTransaction Kind = "record_transaction"
	KindUnrecognized      Kind = "unrecognized"
)

// Intent is the closed set of commands an utterance can map to.
type Intent interface {
	Kind() Kind
	sealed()
}

type Target string

const (
	TargetDashboard Target = "dashboard"
	TargetPortfolio Target = "portfolio"
	TargetWatchlist Target = "watchlist"
	TargetHistory   Target = "history"
	TargetTrading   Target = "trading"
)

type AuthAction string

const (
	AuthLogin    AuthAction = "login"
	AuthRegister AuthAction = "register"
	AuthLogout   AuthAction = "logout"
)

type WatchOp string

const (
	WatchAdd    WatchOp = "add"
	WatchRemove WatchOp = "remove"
)

type TradeAction string

const (
	Buy  TradeAction = "BUY"
	Sell TradeAction = "SELL"
)

type (
	Navigate struct {
		Target Target `json:"target"`
	}

	Authenticate struct {
		Action AuthAction `json:"action"`
	}

	SearchStock struct {
		Symbol string `json:"symbol"`
	}

	WatchlistOp struct {
		Op     WatchOp `json:"op"`
		Symbol string  `json:"symbol"`
	}

	// Trade always carries a positive quantity and a 1-5 letter upper-case symbol.
	Trade struct {
		Action   TradeAction `json:"action"`
		Quantity int         `json:"quantity"`
		Symbol   string      `json:"symbol"`
	}

	RecordTransaction struct {
		TxKind      core.Kind     `json:"type"`
		Amount      core.Money    `json:"amount"`
		Description string        `json:"description"`
		Category    core.Category `json:"category"`
	}

	Unrecognized struct {
		Text string `json:"text"`
	}
)

func (Navigate) Kind() Kind          { return KindNavigate }
func (Authenticate) Kind() Kind      { return KindAuthenticate }
func (SearchStock) Kind() Kind       { return KindSearchStock }
func (WatchlistOp) Kind() Kind       { return KindWatchlist }
func (Trade) Kind() Kind             { return KindTrade }
func (RecordTransaction) Kind() Kind { return KindRecordTransaction }
func (Unrecognized) Kind() Kind      { return KindUnrecognized }

func (Navigate) sealed()          {}
func (Authenticate) sealed()      {}
func (SearchStock) sealed()       {}
func (WatchlistOp) sealed()       {}
func (Trade) sealed()             {}
func (RecordTransaction) sealed() {}
func (Unrecognized) sealed()      {}

// Entry converts the intent into a ledger draft.
func (r RecordTransaction) Entry() core.Entry {
	return core.Entry{
		Kind:        r.TxKind,
		Amount:      r.Amount,
		Description: r.Description,
		Category:    r.Category,
	}
}

// Envelope is the wire form of an Intent: its kind plus the variant payload.
type Envelope struct {
	Kind   Kind   `json:"kind"`
	Intent Intent `json:"intent"`
}

func Wrap(i Intent) Envelope {
	return Envelope{Kind: i.Kind(), Intent: i}
}
