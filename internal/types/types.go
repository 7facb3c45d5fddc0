// =============================================================================
// PO Reconcile - Shared Domain Types
// =============================================================================
//
// This package contains the typed domain model shared across the pipeline
// modules. Types defined here are used by:
//   - nsclient (boundary parsing of external records)
//   - cache (reference lookups)
//   - reconcile (classification, rebuild, driver)
//   - report (run reporting)
//
// The external order-management system exposes loosely-typed records with
// optionally-present fields. Everything in this package is the result of a
// parsing step at the system boundary: by the time reconciliation logic sees
// an Order, optional fields are explicit pointers and all money values are
// decimals.
//
// =============================================================================

package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENVIRONMENT
// =============================================================================

// Environment selects which reference-cache partition and excluded-item
// policy applies. The external system keeps production and sandbox records
// side by side; every cache row carries a sandbox flag.
type Environment string

const (
	// EnvProduction targets production cache rows and the production
	// excluded-item policy.
	EnvProduction Environment = "production"

	// EnvSandbox targets sandbox cache rows.
	EnvSandbox Environment = "sandbox"
)

// Sandbox reports whether the environment is the sandbox partition.
func (e Environment) Sandbox() bool { return e == EnvSandbox }

// Valid reports whether the environment is one of the two known partitions.
func (e Environment) Valid() bool {
	return e == EnvProduction || e == EnvSandbox
}

// ParseEnvironment converts a string flag value into an Environment.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(s)
	if !env.Valid() {
		return "", fmt.Errorf("unknown environment %q (want %q or %q)", s, EnvProduction, EnvSandbox)
	}
	return env, nil
}

// =============================================================================
// RECORD REFERENCES
// =============================================================================

// RecordRef is a reference to another record in the external system.
// The external identifier is always present; the display name is not.
type RecordRef struct {
	ID   string
	Name string
}

// =============================================================================
// ORDER AND LINES
// =============================================================================

// Order is a purchase order fetched from the external order-management
// system. It owns an ordered list of expense lines and an ordered list of
// item lines plus the header fields that must be preserved verbatim across
// an update (counterparty reference and internal identifier in particular).
type Order struct {
	// ID is the external internal identifier of the order record.
	ID string

	// TranID is the human-readable transaction code (e.g. "PO12345").
	TranID string

	// Entity is the counterparty (vendor) reference. It is a required
	// pass-through field: an update that drops it is rejected remotely.
	Entity RecordRef

	// Memo is the order-level memo, pass-through only.
	Memo string

	// ExpenseLines is the ordered expense sublist.
	ExpenseLines []ExpenseLine

	// ItemLines is the ordered item sublist.
	ItemLines []ItemLine
}

// ExpenseLine is an order line booked against a general-ledger account
// rather than a catalog item.
type ExpenseLine struct {
	// Account references the general-ledger account; nil when the external
	// record carried no account (such lines are never converted).
	Account *RecordRef

	// Amount is the booked expense amount.
	Amount decimal.Decimal

	// Rate is an optional unit rate carried on some expense lines.
	Rate *decimal.Decimal

	// Memo is the optional line memo.
	Memo *string

	// Department and Location are optional segment references.
	Department *RecordRef
	Location   *RecordRef
}

// ItemLine is an order line booked against a specific catalog item.
type ItemLine struct {
	// LineNumber is 1-based and contiguous within the order.
	LineNumber int

	// Item references the catalog item.
	Item RecordRef

	// Quantity and Rate define the line economics (Amount = Quantity * Rate
	// on the external side).
	Quantity decimal.Decimal
	Rate     decimal.Decimal

	// Description is the optional line description.
	Description *string

	// Department and Location are optional segment references.
	Department *RecordRef
	Location   *RecordRef
}

// =============================================================================
// REFERENCE CACHE RECORDS
// =============================================================================

// Account is a locally cached general-ledger account record mirrored from
// the external system. Read-only to the reconciliation engine.
type Account struct {
	ID      string
	Number  string
	Name    string
	Sandbox bool
}

// ItemType classifies catalog items the way the external system does.
type ItemType string

const (
	ItemTypeInventory    ItemType = "inventory"
	ItemTypeNonInventory ItemType = "noninventory"
	ItemTypeService      ItemType = "service"
	ItemTypeOtherCharge  ItemType = "othercharge"
)

// Item is a locally cached catalog item record. Read-only to the
// reconciliation engine.
type Item struct {
	ID        string
	Name      string
	Number    string
	Type      ItemType
	BasePrice *decimal.Decimal
	Inactive  bool
	Sandbox   bool
}

// Vendor is a cached counterparty record, maintained by the sync command.
type Vendor struct {
	ID      string
	Name    string
	Sandbox bool
}

// Department is a cached department segment record, maintained by the sync
// command.
type Department struct {
	ID      string
	Name    string
	Sandbox bool
}

// =============================================================================
// RECONCILIATION OUTCOMES
// =============================================================================

// OutcomeKind tags the terminal path an order took through the driver state
// machine.
type OutcomeKind string

const (
	// OutcomeConverted means at least one expense line was converted and
	// (outside dry-run) the order was written back.
	OutcomeConverted OutcomeKind = "converted"

	// OutcomeSkippedNoMatch means the order had expense lines but none
	// qualified for conversion.
	OutcomeSkippedNoMatch OutcomeKind = "skipped_no_match"

	// OutcomeSkippedNoExpenses means the order carried no expense lines.
	OutcomeSkippedNoExpenses OutcomeKind = "skipped_no_expenses"

	// OutcomeSkippedNotFound means the transaction code did not resolve to
	// an order.
	OutcomeSkippedNotFound OutcomeKind = "skipped_not_found"

	// OutcomeError means the order failed (remote rejection, transient
	// failure after retries, validation failure, or panic).
	OutcomeError OutcomeKind = "error"
)

// Outcome records the terminal result for a single order.
type Outcome struct {
	// TranID is the transaction code the driver was asked to reconcile.
	TranID string

	// Kind is the terminal path tag.
	Kind OutcomeKind

	// Converted is the number of expense lines converted to item lines.
	// Zero unless Kind is OutcomeConverted.
	Converted int

	// DryRun marks a Converted outcome that was only planned, not written.
	DryRun bool

	// Err carries the failure detail when Kind is OutcomeError.
	Err error
}

// String renders the outcome for logs and the run report.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeConverted:
		if o.DryRun {
			return fmt.Sprintf("converted %d line(s) [dry-run]", o.Converted)
		}
		return fmt.Sprintf("converted %d line(s)", o.Converted)
	case OutcomeError:
		if o.Err != nil {
			return fmt.Sprintf("error: %v", o.Err)
		}
		return "error"
	default:
		return string(o.Kind)
	}
}
