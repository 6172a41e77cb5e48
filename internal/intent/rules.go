package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Utterance is the normalized input handed to every rule.
type Utterance struct {
	Text  string // trimmed, original casing
	Lower string
}

// Matcher inspects an utterance. It returns (nil, nil) when it does not
// apply, an Intent when it matches, or an error when the utterance was
// clearly aimed at this rule but is unusable.
type Matcher func(u Utterance) (Intent, error)

// Rule is one named entry of an ordered rule table.
type Rule struct {
	Name  string
	Match Matcher
}

var navigationPhrases = []struct {
	phrase string
	target Target
}{
	{"show dashboard", TargetDashboard},
	{"show portfolio", TargetPortfolio},
	{"show watchlist", TargetWatchlist},
	{"show history", TargetHistory},
	{"go to trading", TargetTrading},
}

var authPhrases = []struct {
	phrase string
	action AuthAction
}{
	{"login", AuthLogin},
	{"register", AuthRegister},
	{"logout", AuthLogout},
}

var (
	searchPattern      = regexp.MustCompile(`\b(?:search for|find stock|what is)\s+([a-z]{1,5})\b`)
	watchAddPattern    = regexp.MustCompile(`\b(?:add|put)\s+([a-z]{1,5})\s+to\s+(?:my\s+|the\s+)?watchlist\b`)
	watchRemovePattern = regexp.MustCompile(`\b(?:remove|delete)\s+([a-z]{1,5})\s+from\s+(?:my\s+|the\s+)?watchlist\b`)
	tradePattern       = regexp.MustCompile(`^(buy|sell)\s+(\d{1,5})\s+(?:shares?\s+of\s+)?([a-z]{1,5})$`)
	tradePrefix        = regexp.MustCompile(`^(?:buy|sell)\b`)
)

func matchNavigation(u Utterance) (Intent, error) {
	for _, p := range navigationPhrases {
		if strings.Contains(u.Lower, p.phrase) {
			return Navigate{Target: p.target}, nil
		}
	}
	return nil, nil
}

func matchAuth(u Utterance) (Intent, error) {
	for _, p := range authPhrases {
		if strings.Contains(u.Lower, p.phrase) {
			return Authenticate{Action: p.action}, nil
		}
	}
	return nil, nil
}

func matchSearch(u Utterance) (Intent, error) {
	m := searchPattern.FindStringSubmatch(u.Lower)
	if m == nil {
		return nil, nil
	}
	return SearchStock{Symbol: strings.ToUpper(m[1])}, nil
}

func matchWatchlist(u Utterance) (Intent, error) {
	if m := watchAddPattern.FindStringSubmatch(u.Lower); m != nil {
		return WatchlistOp{Op: WatchAdd, Symbol: strings.ToUpper(m[1])}, nil
	}
	if m := watchRemovePattern.FindStringSubmatch(u.Lower); m != nil {
		return WatchlistOp{Op: WatchRemove, Symbol: strings.ToUpper(m[1])}, nil
	}
	return nil, nil
}

func matchTrade(u Utterance) (Intent, error) {
	m := tradePattern.FindStringSubmatch(u.Lower)
	if m == nil {
		if tradePrefix.MatchString(u.Lower) {
			return nil, newParseError(ErrMalformedTrade, u.Text, tradeSuggestions)
		}
		return nil, nil
	}
	qty, err := strconv.Atoi(m[2])
	if err != nil || qty <= 0 {
		return nil, newParseError(ErrMalformedTrade, u.Text, tradeSuggestions)
	}
	action := Buy
	if m[1] == "sell" {
		action = Sell
	}
	return Trade{Action: action, Quantity: qty, Symbol: strings.ToUpper(m[3])}, nil
}

// TradingRules returns the trading dashboard rule table in evaluation order.
func TradingRules() []Rule {
	return []Rule{
		{Name: "navigate", Match: matchNavigation},
		{Name: "authenticate", Match: matchAuth},
		{Name: "search", Match: matchSearch},
		{Name: "watchlist", Match: matchWatchlist},
		{Name: "trade", Match: matchTrade},
	}
}
