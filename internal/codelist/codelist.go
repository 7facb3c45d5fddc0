// =============================================================================
// PO Reconcile - Order Code Work List
// =============================================================================
//
// This module reads the tabular work list that names which purchase orders
// to reconcile: one transaction code per row, first row is a header, only
// the first column is consumed. Both CSV exports and XLSX workbooks are
// accepted; the format is picked by file extension.
//
// =============================================================================

package codelist

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ReadCodes reads the order-code work list at path. Blank rows and blank
// first cells are skipped; duplicate codes are preserved in order (the
// driver is idempotent per order, so a duplicate costs one extra fetch).
func ReadCodes(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported code list format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// cleanCode normalizes a raw cell value into a transaction code.
// Empty after trimming means "skip this row".
func cleanCode(cell string) string {
	return strings.TrimSpace(cell)
}
