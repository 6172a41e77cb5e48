package intent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tradejoy/internal/core"
)

// Keywords holds the word lists the ledger parser matches against. Words are
// single lower-case tokens; a trailing plural "s" or "es" also matches.
type Keywords struct {
	Sale              []string           `yaml:"sale"`
	Expense           []string           `yaml:"expense"`
	Currency          []string           `yaml:"currency"`
	Fillers           []string           `yaml:"fillers"`
	SaleCategories    []CategoryKeywords `yaml:"sale_categories"`
	ExpenseCategories []CategoryKeywords `yaml:"expense_categories"`
}

// CategoryKeywords maps a word list to the category it selects. Lists are
// tried in order and the first one with a hit wins.
type CategoryKeywords struct {
	Category core.Category `yaml:"category"`
	Words    []string      `yaml:"words"`
}

// DefaultKeywords returns the built-in word lists.
func DefaultKeywords() *Keywords {
	return &Keywords{
		Sale:     []string{"sold", "sale", "earned", "received", "got", "made"},
		Expense:  []string{"bought", "spent", "paid", "expense", "cost"},
		Currency: []string{"rand", "rands", "r", "zar", "rupee", "rupees", "rs", "inr", "dollar", "dollars", "usd", "buck", "bucks", "euro", "euros", "eur", "$", "₹", "€"},
		Fillers:  []string{"i", "we", "for", "on", "from", "at", "to", "a", "an", "the", "of", "and", "worth"},
		SaleCategories: []CategoryKeywords{
			{Category: core.CategoryService, Words: []string{"service", "repair", "consultation", "haircut", "labour", "labor"}},
		},
		ExpenseCategories: []CategoryKeywords{
			{Category: core.CategoryTransport, Words: []string{"transport", "taxi", "bus", "fare", "fuel", "petrol", "gas", "train", "uber", "delivery"}},
			{Category: core.CategoryFood, Words: []string{"food", "lunch", "dinner", "breakfast", "snack", "tea", "coffee", "meal"}},
			{Category: core.CategorySupplies, Words: []string{"supplies", "supply", "materials", "material", "inventory", "stock", "packaging"}},
			{Category: core.CategoryUtilities, Words: []string{"electricity", "water", "phone", "internet", "rent", "airtime", "data"}},
		},
	}
}

// LoadKeywords reads a YAML keyword file. Sections missing from the file keep
// their built-in defaults.
func LoadKeywords(path string) (*Keywords, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}
	return ParseKeywords(raw)
}

// ParseKeywords decodes YAML keyword lists over the defaults and validates them.
func ParseKeywords(raw []byte) (*Keywords, error) {
	var file Keywords
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}

	kw := DefaultKeywords()
	if len(file.Sale) > 0 {
		kw.Sale = file.Sale
	}
	if len(file.Expense) > 0 {
		kw.Expense = file.Expense
	}
	if len(file.Currency) > 0 {
		kw.Currency = file.Currency
	}
	if len(file.Fillers) > 0 {
		kw.Fillers = file.Fillers
	}
	if len(file.SaleCategories) > 0 {
		kw.SaleCategories = file.SaleCategories
	}
	if len(file.ExpenseCategories) > 0 {
		kw.ExpenseCategories = file.ExpenseCategories
	}

	if err := kw.Validate(); err != nil {
		return nil, err
	}
	return kw, nil
}

// Validate checks that category lists only name categories their kind allows
// and that sale and expense keywords do not overlap.
func (k *Keywords) Validate() error {
	var problems []string

	if len(k.Sale) == 0 {
		problems = append(problems, "sale keywords cannot be empty")
	}
	if len(k.Expense) == 0 {
		problems = append(problems, "expense keywords cannot be empty")
	}
	for _, c := range k.SaleCategories {
		if !core.KindSale.Allows(c.Category) {
			problems = append(problems, fmt.Sprintf("category %q is not a sale category", c.Category))
		}
	}
	for _, c := range k.ExpenseCategories {
		if !core.KindExpense.Allows(c.Category) {
			problems = append(problems, fmt.Sprintf("category %q is not an expense category", c.Category))
		}
	}
	sale := newWordSet(k.Sale)
	for _, w := range k.Expense {
		if sale.exact(strings.ToLower(w)) {
			problems = append(problems, fmt.Sprintf("keyword %q is both sale and expense", w))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid keywords: %s", strings.Join(problems, "; "))
	}
	return nil
}

// wordSet matches single tokens, tolerating a plural suffix.
type wordSet map[string]struct{}

func newWordSet(words []string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s[w] = struct{}{}
		}
	}
	return s
}

func (s wordSet) exact(tok string) bool {
	_, ok := s[tok]
	return ok
}

func (s wordSet) has(tok string) bool {
	if s.exact(tok) {
		return true
	}
	if t, ok := strings.CutSuffix(tok, "es"); ok && len(t) > 1 && s.exact(t) {
		return true
	}
	if t, ok := strings.CutSuffix(tok, "s"); ok && len(t) > 1 && s.exact(t) {
		return true
	}
	return false
}

func (s wordSet) any(toks []string) bool {
	for _, t := range toks {
		if s.has(t) {
			return true
		}
	}
	return false
}

type categorySet struct {
	category core.Category
	words    wordSet
}

// lexicon is the compiled form of Keywords.
type lexicon struct {
	sale, expense     wordSet
	currency, fillers wordSet
	saleCats          []categorySet
	expenseCats       []categorySet
}

func compile(k *Keywords) *lexicon {
	lx := &lexicon{
		sale:     newWordSet(k.Sale),
		expense:  newWordSet(k.Expense),
		currency: newWordSet(k.Currency),
		fillers:  newWordSet(k.Fillers),
	}
	for _, c := range k.SaleCategories {
		lx.saleCats = append(lx.saleCats, categorySet{category: c.Category, words: newWordSet(c.Words)})
	}
	for _, c := range k.ExpenseCategories {
		lx.expenseCats = append(lx.expenseCats, categorySet{category: c.Category, words: newWordSet(c.Words)})
	}
	return lx
}

func (lx *lexicon) categoryFor(kind core.Kind, words []string) core.Category {
	sets := lx.expenseCats
	if kind == core.KindSale {
		sets = lx.saleCats
	}
	for _, cs := range sets {
		if cs.words.any(words) {
			return cs.category
		}
	}
	return kind.DefaultCategory()
}
