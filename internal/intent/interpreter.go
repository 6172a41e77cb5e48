package intent

import "strings"

// Mode selects which rule table an Interpreter runs.
type Mode int

const (
	ModeTrading Mode = iota
	ModeLedger
)

func (m Mode) String() string {
	if m == ModeLedger {
		return "ledger"
	}
	return "trading"
}

// Interpreter maps utterances to Intents using an ordered rule table.
// It holds no mutable state and is safe for concurrent use.
type Interpreter struct {
	mode  Mode
	rules []Rule
}

// NewTrading returns an interpreter for the trading dashboard commands.
func NewTrading() *Interpreter {
	return &Interpreter{mode: ModeTrading, rules: TradingRules()}
}

// NewLedger returns an interpreter for spoken sales and expenses. A nil
// keyword set uses the defaults.
func NewLedger(k *Keywords) *Interpreter {
	if k == nil {
		k = DefaultKeywords()
	}
	return &Interpreter{mode: ModeLedger, rules: []Rule{LedgerRule(k)}}
}

// NewWithRules builds an interpreter over a custom rule table.
func NewWithRules(mode Mode, rules []Rule) *Interpreter {
	return &Interpreter{mode: mode, rules: append([]Rule(nil), rules...)}
}

func (in *Interpreter) Mode() Mode {
	return in.mode
}

// Rules lists rule names in evaluation order.
func (in *Interpreter) Rules() []string {
	names := make([]string, len(in.rules))
	for i, r := range in.rules {
		names[i] = r.Name
	}
	return names
}

// Interpret returns exactly one Intent for text. The first matching rule
// wins. When nothing matches the result is Unrecognized; when a rule rejects
// the utterance the result is Unrecognized together with a *ParseError.
func (in *Interpreter) Interpret(text string) (Intent, error) {
	u := normalize(text)
	if u.Text == "" {
		if in.mode == ModeLedger {
			return Unrecognized{Text: u.Text}, newParseError(ErrNoAmount, u.Text, ledgerSuggestions)
		}
		return Unrecognized{Text: u.Text}, nil
	}

	for _, r := range in.rules {
		got, err := r.Match(u)
		if err != nil {
			return Unrecognized{Text: u.Text}, err
		}
		if got != nil {
			return got, nil
		}
	}
	return Unrecognized{Text: u.Text}, nil
}

// normalize trims whitespace and the sentence punctuation speech recognisers
// append, and collapses inner runs of whitespace.
func normalize(text string) Utterance {
	t := strings.Join(strings.Fields(text), " ")
	t = strings.TrimRight(t, ".!?")
	t = strings.TrimSpace(t)
	return Utterance{Text: t, Lower: strings.ToLower(t)}
}
