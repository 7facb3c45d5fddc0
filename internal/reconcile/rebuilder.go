// =============================================================================
// PO Reconcile - Line Rebuilder
// =============================================================================
//
// The rebuilder constructs the order's new line sets from a classification:
// existing item lines are carried over (renumbered), each converted expense
// becomes a new item line appended after them, and kept expenses pass
// through untouched.
//
// RATE AND QUANTITY DERIVATION (decimal arithmetic throughout):
//   rate     = expense.rate      when present and > 0
//            = item.base_price   when present and > 0
//            = expense.amount    otherwise
//   quantity = expense.amount / rate   when rate > 0
//            = 1                       otherwise (zero is never a divisor)
//
// =============================================================================

package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/mkardell/po-reconcile/internal/types"
)

// one is the quantity fallback when no usable rate exists.
var one = decimal.NewFromInt(1)

// Rebuild produces the new ordered item-line list and the retained
// expense-line list.
//
// Item lines are renumbered contiguously from 1, existing items first in
// their original relative order, then one new line per converted expense.
// The returned expense list is never nil: an explicit empty list tells the
// write-back to replace (clear) the sublist rather than leave stale lines.
func Rebuild(existing []types.ItemLine, toConvert []ClassifiedLine, toKeep []types.ExpenseLine) ([]types.ItemLine, []types.ExpenseLine) {
	itemLines := make([]types.ItemLine, 0, len(existing)+len(toConvert))

	for _, line := range existing {
		carried := line
		carried.LineNumber = len(itemLines) + 1
		itemLines = append(itemLines, carried)
	}

	for _, conv := range toConvert {
		itemLines = append(itemLines, buildItemLine(conv, len(itemLines)+1))
	}

	expenseLines := make([]types.ExpenseLine, 0, len(toKeep))
	expenseLines = append(expenseLines, toKeep...)

	return itemLines, expenseLines
}

// buildItemLine derives the replacement item line for one converted expense.
func buildItemLine(conv ClassifiedLine, lineNumber int) types.ItemLine {
	expense := conv.Expense

	rate := deriveRate(expense, conv.Item)

	var quantity decimal.Decimal
	if rate.IsPositive() {
		quantity = expense.Amount.Div(rate)
	} else {
		// No usable rate at all (amount itself was zero or negative):
		// one unit at the expense amount keeps the line total intact.
		quantity = one
		rate = expense.Amount
	}

	line := types.ItemLine{
		LineNumber: lineNumber,
		Item:       types.RecordRef{ID: conv.Item.ID, Name: conv.Item.Name},
		Quantity:   quantity,
		Rate:       rate,
		Department: expense.Department,
		Location:   expense.Location,
	}
	if expense.Memo != nil && *expense.Memo != "" {
		memo := *expense.Memo
		line.Description = &memo
	}

	return line
}

// deriveRate applies the rate fallback chain: expense rate, then catalog
// base price, then the raw amount (one-unit line).
func deriveRate(expense types.ExpenseLine, item types.Item) decimal.Decimal {
	if expense.Rate != nil && expense.Rate.IsPositive() {
		return *expense.Rate
	}
	if item.BasePrice != nil && item.BasePrice.IsPositive() {
		return *item.BasePrice
	}
	return expense.Amount
}
