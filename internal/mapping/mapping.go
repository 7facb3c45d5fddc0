// =============================================================================
// PO Reconcile - Mapping Table Loader
// =============================================================================
//
// This module loads the account-number -> catalog-item-name mapping that
// drives conversion eligibility. The finance team exports the mapping as a
// JSON array of {account_number, item_name} entries; hand-maintained YAML
// files parse identically (JSON is valid YAML).
//
// The mapping is loaded fresh on every run and never cached across runs:
// the export may change between invocations.
//
// =============================================================================

package mapping

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkardell/po-reconcile/internal/errs"
)

// Entry is a single mapping row as it appears in the source file.
type Entry struct {
	// AccountNumber is the general-ledger account number, e.g. "4010".
	AccountNumber string `yaml:"account_number" json:"account_number"`

	// ItemName is the canonical catalog item name the account maps to.
	ItemName string `yaml:"item_name" json:"item_name"`
}

// Table is the in-memory mapping keyed by account number. Immutable during
// a run.
type Table map[string]string

// Lookup returns the mapped item name for an account number.
func (t Table) Lookup(accountNumber string) (string, bool) {
	name, ok := t[accountNumber]
	return name, ok
}

// Load reads the mapping file at path and builds the lookup table.
// Duplicate account numbers are last-write-wins. A missing or malformed
// source is an errs.ErrConfig: it fails the whole run, not a single order.
func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewConfigError(path, err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errs.NewConfigError(path, fmt.Errorf("invalid mapping data: %w", err))
	}

	table := make(Table, len(entries))
	for i, e := range entries {
		if e.AccountNumber == "" || e.ItemName == "" {
			return nil, errs.NewConfigError(path,
				fmt.Errorf("entry %d: account_number and item_name are both required", i))
		}
		table[e.AccountNumber] = e.ItemName
	}

	return table, nil
}
