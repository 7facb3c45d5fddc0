// =============================================================================
// PO Reconcile - Run Report Writer
// =============================================================================
//
// Writes the end-of-run XLSX report: one row per order with its outcome,
// conversion count and error detail, plus a totals footer. Report files are
// named with the run timestamp and a short run id so repeated runs never
// collide.
//
// =============================================================================

package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/mkardell/po-reconcile/internal/reconcile"
	"github.com/mkardell/po-reconcile/internal/types"
)

const sheetName = "Reconciliation"

// Write renders the run summary to an XLSX file in dir and returns the
// file's path.
func Write(dir string, summary reconcile.Summary) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	header := []any{"Order", "Outcome", "Converted Lines", "Dry Run", "Detail"}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return "", fmt.Errorf("write report header: %w", err)
	}

	for i, outcome := range summary.Outcomes {
		detail := describeOutcome(outcome.Kind)
		if outcome.Err != nil {
			detail = outcome.Err.Error()
		}
		row := []any{outcome.TranID, string(outcome.Kind), outcome.Converted, outcome.DryRun, detail}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return "", fmt.Errorf("write report row %d: %w", i+1, err)
		}
	}

	footerRow := len(summary.Outcomes) + 3
	footer := []any{
		"TOTAL",
		fmt.Sprintf("converted=%d skipped=%d errors=%d",
			summary.Converted,
			summary.SkippedNoMatch+summary.SkippedNoExpenses+summary.SkippedNotFound,
			summary.Errors),
		summary.ConvertedLines,
		summary.DryRun,
		fmt.Sprintf("elapsed %s", summary.Elapsed.Round(time.Millisecond)),
	}
	if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", footerRow), &footer); err != nil {
		return "", fmt.Errorf("write report footer: %w", err)
	}

	path := filepath.Join(dir, fileName(time.Now()))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

// fileName builds a collision-free report name: timestamp plus a short
// run id.
func fileName(now time.Time) string {
	runID := uuid.NewString()[:8]
	return fmt.Sprintf("reconcile_%s_%s.xlsx", now.Format("20060102_150405"), runID)
}

// Describe returns the one-line console summary printed at the end of a
// run.
func Describe(summary reconcile.Summary) string {
	mode := "live"
	if summary.DryRun {
		mode = "dry-run"
	}
	return fmt.Sprintf("%s: %d order(s) processed, %d converted (%d lines), %d skipped, %d error(s) in %s",
		mode,
		len(summary.Outcomes),
		summary.Converted,
		summary.ConvertedLines,
		summary.SkippedNoMatch+summary.SkippedNoExpenses+summary.SkippedNotFound,
		summary.Errors,
		summary.Elapsed.Round(time.Millisecond))
}

// describeOutcome keeps the detail column for non-error rows human-readable.
func describeOutcome(kind types.OutcomeKind) string {
	switch kind {
	case types.OutcomeConverted:
		return ""
	case types.OutcomeSkippedNoMatch:
		return "no convertible lines"
	case types.OutcomeSkippedNoExpenses:
		return "no expense lines"
	case types.OutcomeSkippedNotFound:
		return "order not found"
	default:
		return string(kind)
	}
}
