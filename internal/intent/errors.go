package intent

import (
	"errors"
	"fmt"
)

var (
	ErrNoAmount       = errors.New("no amount found")
	ErrAmbiguous      = errors.New("ambiguous intent")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrMalformedTrade = errors.New("malformed trade")
)

var (
	ledgerSuggestions = []string{
		`Try: "I sold apples for 50 rands"`,
		`Try: "Bought supplies for 200"`,
		`Try: "Made 300 from service"`,
	}
	tradeSuggestions = []string{
		`Try: "buy 10 AAPL"`,
		`Try: "sell 5 shares of MSFT"`,
	}
)

// ParseError reports an utterance that looked like a command but could not be
// turned into one. Suggestions are example phrasings to show the user.
type ParseError struct {
	Reason      error
	Text        string
	Suggestions []string
}

func newParseError(reason error, text string, suggestions []string) *ParseError {
	return &ParseError{
		Reason:      reason,
		Text:        text,
		Suggestions: append([]string(nil), suggestions...),
	}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("interpret %q: %v", e.Text, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Reason
}
