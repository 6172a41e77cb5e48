package assistant

import (
	"context"
	"errors"
	"time"

	"tradejoy/internal/broker"
	"tradejoy/internal/core"
)

var (
	ErrAlreadyListening = errors.New("a listening session is already active")
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNotSupported     = errors.New("speech recognition is not supported")
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
)

const noticeTTL = 5 * time.Second

// Notice is a short visual message. Errors stay until dismissed.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// TTL is how long the notice stays visible; zero means until dismissed.
func (n Notice) TTL() time.Duration {
	if n.Kind == NoticeError {
		return 0
	}
	return noticeTTL
}

//go:generate mockgen -source=ports.go -destination=mocks/mock_assistant.go

// Speaker reads text aloud.
type Speaker interface {
	Speak(text string)
}

// Notifier shows a notice to the user.
type Notifier interface {
	Notify(n Notice)
}

// Transcriber runs one recognition session and returns its final
// transcript. It returns ErrPermissionDenied when the microphone is refused.
type Transcriber interface {
	Transcribe(ctx context.Context) (string, error)
}

// Broker is the part of the trading API the assistant drives.
type Broker interface {
	LoggedIn() bool
	Login(ctx context.Context, username, password string) (broker.Session, error)
	Register(ctx context.Context, username, email, password string) (broker.Session, error)
	Logout(ctx context.Context) error
	Quote(ctx context.Context, symbol string) (broker.Stock, error)
	Indices(ctx context.Context) []broker.Stock
	Portfolio(ctx context.Context) (broker.Portfolio, error)
	Watchlist(ctx context.Context) ([]broker.WatchItem, error)
	History(ctx context.Context) ([]broker.TradeRecord, error)
	Trade(ctx context.Context, req broker.TradeRequest) (string, error)
	AddToWatchlist(ctx context.Context, symbol string) (string, error)
	RemoveFromWatchlist(ctx context.Context, symbol string) (string, error)
	Health(ctx context.Context) error
}

// Recorder stores ledger entries produced by voice commands.
type Recorder interface {
	Record(ctx context.Context, e core.Entry) (core.Transaction, error)
}
