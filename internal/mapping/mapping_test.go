package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkardell/po-reconcile/internal/errs"
)

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONExport(t *testing.T) {
	path := writeMapping(t, `[
		{"account_number": "4010", "item_name": "Stationery"},
		{"account_number": "4020", "item_name": "Cleaning Supplies"}
	]`)

	table, err := Load(path)
	require.NoError(t, err)
	require.Len(t, table, 2)

	name, ok := table.Lookup("4010")
	require.True(t, ok)
	assert.Equal(t, "Stationery", name)

	_, ok = table.Lookup("9999")
	assert.False(t, ok)
}

func TestLoadYAMLMapping(t *testing.T) {
	path := writeMapping(t, `
- account_number: "4010"
  item_name: Stationery
- account_number: "4030"
  item_name: Postage
`)

	table, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, table, 2)
}

func TestLoadDuplicateAccountLastWriteWins(t *testing.T) {
	path := writeMapping(t, `[
		{"account_number": "4010", "item_name": "Old Name"},
		{"account_number": "4010", "item_name": "New Name"}
	]`)

	table, err := Load(path)
	require.NoError(t, err)
	require.Len(t, table, 1)

	name, _ := table.Lookup("4010")
	assert.Equal(t, "New Name", name)
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestLoadMalformedDataIsConfigError(t *testing.T) {
	path := writeMapping(t, `{not valid : [structured`)

	_, err := Load(path)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestLoadRejectsIncompleteEntries(t *testing.T) {
	path := writeMapping(t, `[{"account_number": "4010"}]`)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConfig)
}
