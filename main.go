// =============================================================================
// PO Reconcile - Main Entry Point
// =============================================================================
//
// CLI for synchronizing and reconciling purchase-order data with the
// external order-management system. All command wiring lives in cmd/;
// business logic lives under internal/.
//
// USAGE:
//   po-reconcile sync                - refresh the local reference cache
//   po-reconcile reconcile           - run the expense-to-item conversion
//   po-reconcile orders show <code>  - dump a single order for inspection
//   po-reconcile version             - display build information
//
// =============================================================================

package main

import (
	"github.com/mkardell/po-reconcile/cmd"
)

func main() {
	cmd.Execute()
}
