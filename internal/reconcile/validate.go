// =============================================================================
// PO Reconcile - Pre-Write Validation
// =============================================================================
//
// Before an order is written back, the rebuilt line sets are checked against
// the invariants the rebuild must uphold. A violation here means a bug in
// classification or rebuild, so the order is recorded as an error rather
// than written in a corrupt state.
//
// =============================================================================

package reconcile

import (
	"fmt"
	"strings"

	"github.com/mkardell/po-reconcile/internal/types"
)

// ValidationIssue describes one violated invariant.
type ValidationIssue struct {
	Field   string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidateRebuild checks the rebuilt order against the pre-write invariants:
//
//   - item line numbers form a contiguous 1..N sequence
//   - conservation: kept + converted expense lines account for every
//     original expense line exactly once
//   - converted line economics are well-formed (no negative quantity)
//   - required pass-through fields survived the rebuild
//
// Returns nil when the order is safe to write.
func ValidateRebuild(order *types.Order, originalExpenses int, converted int) error {
	var issues []ValidationIssue

	for i, line := range order.ItemLines {
		if line.LineNumber != i+1 {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("item_lines[%d].line_number", i),
				Message: fmt.Sprintf("expected %d, got %d", i+1, line.LineNumber),
			})
		}
		if line.Item.ID == "" {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("item_lines[%d].item", i),
				Message: "missing item reference",
			})
		}
		if line.Quantity.IsNegative() {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("item_lines[%d].quantity", i),
				Message: "negative quantity",
			})
		}
	}

	if got := len(order.ExpenseLines) + converted; got != originalExpenses {
		issues = append(issues, ValidationIssue{
			Field: "expense_lines",
			Message: fmt.Sprintf("conservation violated: %d kept + %d converted != %d original",
				len(order.ExpenseLines), converted, originalExpenses),
		})
	}

	if order.Entity.ID == "" {
		issues = append(issues, ValidationIssue{Field: "entity", Message: "counterparty reference missing"})
	}
	if order.ID == "" {
		issues = append(issues, ValidationIssue{Field: "id", Message: "internal identifier missing"})
	}

	if len(issues) == 0 {
		return nil
	}

	msgs := make([]string, len(issues))
	for i, issue := range issues {
		msgs[i] = issue.String()
	}
	return fmt.Errorf("rebuilt order %s failed validation: %s", order.TranID, strings.Join(msgs, "; "))
}
