package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkardell/po-reconcile/internal/errs"
	"github.com/mkardell/po-reconcile/internal/mapping"
	"github.com/mkardell/po-reconcile/internal/types"
)

// fakeResolver is an in-memory stand-in for the reference cache.
type fakeResolver struct {
	accounts map[string]types.Account // external id -> account
	items    map[string]types.Item    // mapped name -> item
	excluded map[string]bool          // mapped names resolving only to the excluded item
	failing  bool                     // simulate cache infrastructure failure
}

func (f *fakeResolver) FindAccount(_ context.Context, externalID string, _ types.Environment) (*types.Account, error) {
	if f.failing {
		return nil, fmt.Errorf("cache unavailable")
	}
	if acct, ok := f.accounts[externalID]; ok {
		return &acct, nil
	}
	return nil, fmt.Errorf("account %s: %w", externalID, errs.ErrNotFound)
}

func (f *fakeResolver) FindItem(_ context.Context, mappedName string, _ types.Environment, _ string) (*types.Item, error) {
	if f.failing {
		return nil, fmt.Errorf("cache unavailable")
	}
	if f.excluded[mappedName] {
		return nil, fmt.Errorf("item %q: %w", mappedName, errs.ErrExcluded)
	}
	if item, ok := f.items[mappedName]; ok {
		return &item, nil
	}
	return nil, fmt.Errorf("item %q: %w", mappedName, errs.ErrNotFound)
}

func testClassifyConfig() ClassifyConfig {
	return ClassifyConfig{Environment: types.EnvProduction, ExcludedItemNumber: "MISC-000"}
}

func acctRef(id string) *types.RecordRef { return &types.RecordRef{ID: id} }

func TestClassifyPartitionsEveryLineExactlyOnce(t *testing.T) {
	resolver := &fakeResolver{
		accounts: map[string]types.Account{
			"a-4010": {ID: "a-4010", Number: "4010"},
			"a-4020": {ID: "a-4020", Number: "4020"},
			"a-4030": {ID: "a-4030", Number: "4030"},
			"a-4040": {ID: "a-4040", Number: "4040"},
		},
		items: map[string]types.Item{
			"Stationery": {ID: "i-1", Name: "Stationery Pack", Type: types.ItemTypeNonInventory},
		},
		excluded: map[string]bool{"Misc": true},
	}
	table := mapping.Table{
		"4010": "Stationery", // converts
		"4020": "Ghost",      // item not found -> keep
		"4030": "Misc",       // excluded -> keep
		// 4040 unmapped -> keep
	}
	order := &types.Order{
		TranID: "PO1",
		ExpenseLines: []types.ExpenseLine{
			{Account: acctRef("a-4010"), Amount: dec("100")}, // convert
			{Account: acctRef("a-4020"), Amount: dec("10")},  // keep: item miss
			{Account: acctRef("a-4030"), Amount: dec("20")},  // keep: excluded
			{Account: acctRef("a-4040"), Amount: dec("30")},  // keep: unmapped
			{Account: acctRef("a-9999"), Amount: dec("40")},  // keep: account miss
			{Account: nil, Amount: dec("50")},                // keep: no account ref
		},
	}

	result, err := Classify(context.Background(), order, table, resolver, testClassifyConfig(), zerolog.Nop())
	require.NoError(t, err)

	// Conservation: every original line lands in exactly one set.
	assert.Equal(t, len(order.ExpenseLines), len(result.ToConvert)+len(result.ToKeep))
	require.Len(t, result.ToConvert, 1)
	require.Len(t, result.ToKeep, 5)

	conv := result.ToConvert[0]
	assert.Equal(t, "i-1", conv.Item.ID)
	assert.Equal(t, "4010", conv.Account.Number)
	assert.Equal(t, "Stationery", conv.MappedName)
	assert.True(t, conv.Expense.Amount.Equal(dec("100")))

	// Kept lines preserve their original relative order.
	assert.True(t, result.ToKeep[0].Amount.Equal(dec("10")))
	assert.True(t, result.ToKeep[4].Amount.Equal(dec("50")))
}

func TestClassifyExcludedItemAlwaysKept(t *testing.T) {
	resolver := &fakeResolver{
		accounts: map[string]types.Account{"a-1": {ID: "a-1", Number: "4010"}},
		excluded: map[string]bool{"Stationery": true},
	}
	table := mapping.Table{"4010": "Stationery"}

	for _, env := range []types.Environment{types.EnvProduction, types.EnvSandbox} {
		order := &types.Order{
			TranID:       "PO1",
			ExpenseLines: []types.ExpenseLine{{Account: acctRef("a-1"), Amount: dec("100")}},
		}
		cfg := ClassifyConfig{Environment: env, ExcludedItemNumber: "MISC-000"}

		result, err := Classify(context.Background(), order, table, resolver, cfg, zerolog.Nop())
		require.NoError(t, err)
		assert.Empty(t, result.ToConvert, "env %s", env)
		assert.Len(t, result.ToKeep, 1, "env %s", env)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	resolver := &fakeResolver{
		accounts: map[string]types.Account{"a-1": {ID: "a-1", Number: "4010"}},
		items:    map[string]types.Item{"Stationery": {ID: "i-1", Name: "Stationery Pack"}},
	}
	table := mapping.Table{"4010": "Stationery"}
	order := &types.Order{
		TranID: "PO1",
		ExpenseLines: []types.ExpenseLine{
			{Account: acctRef("a-1"), Amount: dec("100")},
			{Account: acctRef("a-2"), Amount: dec("200")},
		},
	}

	first, err := Classify(context.Background(), order, table, resolver, testClassifyConfig(), zerolog.Nop())
	require.NoError(t, err)
	second, err := Classify(context.Background(), order, table, resolver, testClassifyConfig(), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestClassifyCacheFailureAbortsClassification(t *testing.T) {
	resolver := &fakeResolver{failing: true}
	order := &types.Order{
		TranID:       "PO1",
		ExpenseLines: []types.ExpenseLine{{Account: acctRef("a-1"), Amount: dec("100")}},
	}

	_, err := Classify(context.Background(), order, mapping.Table{}, resolver, testClassifyConfig(), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache unavailable")
}
