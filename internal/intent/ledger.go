package intent

import (
	"regexp"
	"strings"
	"unicode"

	"tradejoy/internal/core"
)

const (
	minDescriptionLen = 3
	maxDescriptionLen = 200
)

// amountPattern takes the first number, allowing thousands separators.
var amountPattern = regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d+)?`)

// LedgerRule returns the rule that turns a spoken sale or expense into a
// RecordTransaction intent.
func LedgerRule(k *Keywords) Rule {
	lx := compile(k)
	return Rule{Name: "record-transaction", Match: lx.matchTransaction}
}

func (lx *lexicon) matchTransaction(u Utterance) (Intent, error) {
	loc := amountPattern.FindStringIndex(u.Text)
	if loc == nil {
		return nil, newParseError(ErrNoAmount, u.Text, ledgerSuggestions)
	}
	raw := u.Text[loc[0]:loc[1]]
	cents, err := core.ParseDecimalToCents(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return nil, newParseError(ErrInvalidAmount, u.Text, ledgerSuggestions)
	}

	words := strings.FieldsFunc(u.Lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var kind core.Kind
	var keywords wordSet
	switch {
	case lx.sale.any(words):
		kind, keywords = core.KindSale, lx.sale
	case lx.expense.any(words):
		kind, keywords = core.KindExpense, lx.expense
	default:
		return nil, newParseError(ErrAmbiguous, u.Text, ledgerSuggestions)
	}

	return RecordTransaction{
		TxKind:      kind,
		Amount:      core.Money{Cents: cents},
		Description: lx.describe(u.Text, raw, keywords, kind),
		Category:    lx.categoryFor(kind, words),
	}, nil
}

// describe strips the amount, currency words and the kind keyword from the
// utterance, then trims filler words from both ends.
func (lx *lexicon) describe(text, amount string, keywords wordSet, kind core.Kind) string {
	var kept []string
	amountSeen := false
	for _, tok := range strings.Fields(text) {
		clean := strings.TrimFunc(tok, unicode.IsPunct)
		lower := strings.ToLower(clean)
		switch {
		case clean == "":
			continue
		case !amountSeen && strings.Contains(tok, amount):
			amountSeen = true
			continue
		case lx.currency.exact(lower), keywords.has(lower):
			continue
		}
		kept = append(kept, clean)
	}

	for len(kept) > 0 && lx.fillers.exact(strings.ToLower(kept[0])) {
		kept = kept[1:]
	}
	for len(kept) > 0 && lx.fillers.exact(strings.ToLower(kept[len(kept)-1])) {
		kept = kept[:len(kept)-1]
	}

	desc := []rune(strings.Join(kept, " "))
	if len(desc) < minDescriptionLen {
		return "Voice recorded " + kind.String()
	}
	if len(desc) > maxDescriptionLen {
		desc = desc[:maxDescriptionLen]
	}
	return string(desc)
}
