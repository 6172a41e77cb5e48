package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindSale    Kind = "sale"
	KindExpense Kind = "expense"
)

const (
	CategoryProductSale Category = "product-sale"
	CategoryService     Category = "service"
	CategoryTransport   Category = "transport"
	CategoryFood        Category = "food"
	CategorySupplies    Category = "supplies"
	CategoryUtilities   Category = "utilities"
	CategoryOther       Category = "other"
)

type (
	// Kind tells a sale apart from an expense.
	Kind string

	// Category is the enumerated tag attached to every transaction.
	Category string

	// Date is a calendar day, normalised to midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Entry is a transaction draft before the ledger assigns identity and time.
	Entry struct {
		Kind        Kind
		Amount      Money
		Description string
		Category    Category
	}

	Transaction struct {
		ID          int64     `json:"id"`
		Kind        Kind      `json:"type"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Category    Category  `json:"category"`
		OccurredAt  time.Time `json:"timestamp"`
		Date        Date      `json:"date"` // calendar day at record time
	}
)

var (
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrZeroDate         = errors.New("date cannot be zero")
)

const maxDescriptionLen = 200

var categoriesByKind = map[Kind][]Category{
	KindSale:    {CategoryProductSale, CategoryService},
	KindExpense: {CategoryTransport, CategoryFood, CategorySupplies, CategoryUtilities, CategoryOther},
}

func (k Kind) IsValid() bool {
	return k == KindSale || k == KindExpense
}

func (k Kind) String() string {
	return string(k)
}

// Categories returns the tags a transaction of this kind may carry.
func (k Kind) Categories() []Category {
	return append([]Category(nil), categoriesByKind[k]...)
}

// DefaultCategory is used when no keyword points at a more specific tag.
func (k Kind) DefaultCategory() Category {
	if k == KindSale {
		return CategoryProductSale
	}
	return CategoryOther
}

// Allows reports whether c is a valid tag for kind k.
func (k Kind) Allows(c Category) bool {
	for _, v := range categoriesByKind[k] {
		if v == c {
			return true
		}
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Same reports whether both dates name the same calendar day.
func (d Date) Same(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	*d = Date{Time: t}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents >= maxCents.IntPart() {
		return ErrInvalidAmount
	}
	return nil
}

func (e Entry) Validate() error {
	if !e.Kind.IsValid() {
		return ErrInvalidKind
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > maxDescriptionLen {
		return errors.New("description too long (max 200 characters)")
	}
	if !e.Kind.Allows(e.Category) {
		return ErrInvalidCategory
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Entry().Validate(); err != nil {
		return err
	}
	if t.OccurredAt.IsZero() {
		return errors.New("occurred_at cannot be zero")
	}
	return t.Date.Validate()
}

// Entry strips identity and timestamps from t.
func (t Transaction) Entry() Entry {
	return Entry{
		Kind:        t.Kind,
		Amount:      t.Amount,
		Description: t.Description,
		Category:    t.Category,
	}
}

// Signed returns the amount as a profit contribution: positive for sales,
// negative for expenses.
func (t Transaction) Signed() Money {
	if t.Kind == KindExpense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}
