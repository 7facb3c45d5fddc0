package cache

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkardell/po-reconcile/internal/errs"
	"github.com/mkardell/po-reconcile/internal/types"
)

const excluded = "MISC-000"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func decPtr(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func seedItems(t *testing.T, store *Store, items ...types.Item) {
	t.Helper()
	require.NoError(t, store.UpsertItems(context.Background(), items))
}

func TestFindAccountByExternalID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAccounts(ctx, []types.Account{
		{ID: "a-1", Number: "4010", Name: "Office Supplies"},
		{ID: "a-2", Number: "4010", Name: "Office Supplies (SB)", Sandbox: true},
	}))

	acct, err := store.FindAccount(ctx, "a-1", types.EnvProduction)
	require.NoError(t, err)
	assert.Equal(t, "4010", acct.Number)
	assert.False(t, acct.Sandbox)

	// Environment partitions are strict: a production lookup never sees a
	// sandbox row and vice versa.
	_, err = store.FindAccount(ctx, "a-2", types.EnvProduction)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	sb, err := store.FindAccount(ctx, "a-2", types.EnvSandbox)
	require.NoError(t, err)
	assert.True(t, sb.Sandbox)

	_, err = store.FindAccount(ctx, "a-missing", types.EnvProduction)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFindItemNameTierWinsFirst(t *testing.T) {
	store := openTestStore(t)
	seedItems(t, store,
		types.Item{ID: "i-1", Name: "Stationery Pack", Number: "STA-100", Type: types.ItemTypeNonInventory},
		// Number tier candidate that must not shadow the name tier.
		types.Item{ID: "i-2", Name: "Other", Number: "Stationery", Type: types.ItemTypeNonInventory},
	)

	item, err := store.FindItem(context.Background(), "Stationery", types.EnvProduction, excluded)
	require.NoError(t, err)
	assert.Equal(t, "i-1", item.ID)
}

func TestFindItemFallsBackToNumberTier(t *testing.T) {
	store := openTestStore(t)
	seedItems(t, store,
		types.Item{ID: "i-2", Name: "Bulk Paper", Number: "STA-200", Type: types.ItemTypeInventory},
	)

	item, err := store.FindItem(context.Background(), "STA-200", types.EnvProduction, excluded)
	require.NoError(t, err)
	assert.Equal(t, "i-2", item.ID)
}

func TestFindItemMatchIsCaseSensitive(t *testing.T) {
	store := openTestStore(t)
	seedItems(t, store,
		types.Item{ID: "i-1", Name: "Stationery Pack", Type: types.ItemTypeNonInventory},
	)

	_, err := store.FindItem(context.Background(), "stationery", types.EnvProduction, excluded)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFindItemSkipsInactiveRows(t *testing.T) {
	store := openTestStore(t)
	seedItems(t, store,
		types.Item{ID: "i-1", Name: "Stationery Pack", Inactive: true},
	)

	_, err := store.FindItem(context.Background(), "Stationery", types.EnvProduction, excluded)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFindItemExcludedIsDistinctFromNotFound(t *testing.T) {
	store := openTestStore(t)
	seedItems(t, store,
		types.Item{ID: "i-1", Name: "Stationery Pack", Number: excluded},
	)

	_, err := store.FindItem(context.Background(), "Stationery", types.EnvProduction, excluded)
	assert.ErrorIs(t, err, errs.ErrExcluded)
	assert.NotErrorIs(t, err, errs.ErrNotFound)

	_, err = store.FindItem(context.Background(), "Nonexistent", types.EnvProduction, excluded)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFindItemExcludedNeverSelectedWhenAlternativeExists(t *testing.T) {
	store := openTestStore(t)
	seedItems(t, store,
		types.Item{ID: "i-1", Name: "Stationery Misc", Number: excluded},
		types.Item{ID: "i-2", Name: "Stationery Pack", Number: "STA-100"},
	)

	item, err := store.FindItem(context.Background(), "Stationery", types.EnvProduction, excluded)
	require.NoError(t, err)
	assert.Equal(t, "i-2", item.ID)
}

func TestItemMatcherTiersIndividually(t *testing.T) {
	store := openTestStore(t)
	seedItems(t, store,
		types.Item{ID: "i-1", Name: "Toner Cartridge", Number: "SVC-001", Type: types.ItemTypeInventory},
		types.Item{ID: "i-2", Name: "Service Fee", Number: "SVC-Toner", Type: types.ItemTypeNonInventory},
	)

	ctx := context.Background()

	// Tier 1 matches on name only.
	item, err := store.queryItem(ctx, itemMatchers[0], "Toner", types.EnvProduction, excluded)
	require.NoError(t, err)
	assert.Equal(t, "i-1", item.ID)

	// Tier 2 matches on item number only.
	item, err = store.queryItem(ctx, itemMatchers[1], "SVC-Toner", types.EnvProduction, excluded)
	require.NoError(t, err)
	assert.Equal(t, "i-2", item.ID)

	// Tier 3 matches either field but only for non-inventory items: the
	// inventory row i-1 is invisible to it.
	item, err = store.queryItem(ctx, itemMatchers[2], "Toner", types.EnvProduction, excluded)
	require.NoError(t, err)
	assert.Equal(t, "i-2", item.ID)
}

func TestFindItemRoundTripsBasePrice(t *testing.T) {
	store := openTestStore(t)
	seedItems(t, store,
		types.Item{ID: "i-1", Name: "Stationery Pack", BasePrice: decPtr("24.99")},
		types.Item{ID: "i-2", Name: "Binder Clips"},
	)

	item, err := store.FindItem(context.Background(), "Stationery", types.EnvProduction, excluded)
	require.NoError(t, err)
	require.NotNil(t, item.BasePrice)
	assert.True(t, item.BasePrice.Equal(*decPtr("24.99")))

	noPrice, err := store.FindItem(context.Background(), "Binder", types.EnvProduction, excluded)
	require.NoError(t, err)
	assert.Nil(t, noPrice.BasePrice)
}

func TestUpsertIsIdempotentByExternalID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedItems(t, store, types.Item{ID: "i-1", Name: "Old Name"})
	seedItems(t, store, types.Item{ID: "i-1", Name: "New Name"})

	item, err := store.FindItem(ctx, "New Name", types.EnvProduction, excluded)
	require.NoError(t, err)
	assert.Equal(t, "i-1", item.ID)

	_, err = store.FindItem(ctx, "Old Name", types.EnvProduction, excluded)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpsertVendorsAndDepartments(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertVendors(ctx, []types.Vendor{{ID: "v-1", Name: "Acme Supply"}}))
	require.NoError(t, store.UpsertDepartments(ctx, []types.Department{{ID: "d-1", Name: "Operations"}}))
	// Re-upsert with changed names must not error or duplicate.
	require.NoError(t, store.UpsertVendors(ctx, []types.Vendor{{ID: "v-1", Name: "Acme Supply Co"}}))
	require.NoError(t, store.UpsertDepartments(ctx, []types.Department{{ID: "d-1", Name: "Ops"}}))
}
