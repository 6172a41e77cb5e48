package intent_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejoy/internal/core"
	"tradejoy/internal/intent"
)

func TestParseKeywords_OverridesSections(t *testing.T) {
	kw, err := intent.ParseKeywords([]byte(`
sale: [sold, vended]
expense_categories:
  - category: food
    words: [bread, milk]
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"sold", "vended"}, kw.Sale)
	assert.Equal(t, intent.DefaultKeywords().Expense, kw.Expense)
	require.Len(t, kw.ExpenseCategories, 1)
	assert.Equal(t, core.CategoryFood, kw.ExpenseCategories[0].Category)

	in := intent.NewLedger(kw)

	got, err := in.Interpret("vended 3 crates for 60")
	require.NoError(t, err)
	rec := got.(intent.RecordTransaction)
	assert.Equal(t, core.KindSale, rec.TxKind)
	assert.Equal(t, core.MustMoney("3"), rec.Amount)

	got, err = in.Interpret("spent 12 on milk")
	require.NoError(t, err)
	assert.Equal(t, core.CategoryFood, got.(intent.RecordTransaction).Category)

	// transport words were replaced
	got, err = in.Interpret("spent 12 on taxi")
	require.NoError(t, err)
	assert.Equal(t, core.CategoryOther, got.(intent.RecordTransaction).Category)
}

func TestParseKeywords_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "sale: [sold"},
		{"sale category on expense", "expense_categories:\n  - category: service\n    words: [fix]\n"},
		{"unknown sale category", "sale_categories:\n  - category: transport\n    words: [bus]\n"},
		{"overlapping kind keywords", "sale: [sold, paid]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := intent.ParseKeywords([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("currency: [shillings]\n"), 0o600))

	kw, err := intent.LoadKeywords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"shillings"}, kw.Currency)

	got, err := intent.NewLedger(kw).Interpret("sold mangoes for 40 shillings")
	require.NoError(t, err)
	assert.Equal(t, "mangoes", got.(intent.RecordTransaction).Description)

	_, err = intent.LoadKeywords(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
