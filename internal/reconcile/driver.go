// =============================================================================
// PO Reconcile - Reconciliation Driver
// =============================================================================
//
// The driver runs the per-order state machine over a batch of transaction
// codes:
//
//   Fetched -> Classified -> (NothingToConvert | RebuildReady)
//           -> (DryRunReported | Written | WriteFailed) -> Done
//
// Every path terminates in Done with the path tag retained in the outcome.
// Orders are processed strictly sequentially with a fixed inter-order delay
// (external rate limits). A single order's failure -- including a panic --
// never aborts the batch: it is recorded as an error outcome and the driver
// moves on. Cancellation is checked between orders, so an aborted run never
// leaves an order partially written (the write-back is one replace-all
// call).
//
// =============================================================================

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkardell/po-reconcile/internal/errs"
	"github.com/mkardell/po-reconcile/internal/mapping"
	"github.com/mkardell/po-reconcile/internal/types"
)

// OrderSource is the surface of the external order-management system the
// driver depends on.
type OrderSource interface {
	// GetOrderByCode fetches a full order by transaction code.
	// errs.ErrNotFound when the code does not resolve.
	GetOrderByCode(ctx context.Context, code string) (*types.Order, error)

	// UpdateOrder writes the order back, replacing both line collections.
	UpdateOrder(ctx context.Context, order *types.Order) error
}

// Config carries the run settings for a driver instance.
type Config struct {
	// Environment selects the cache partition and excluded-item policy.
	Environment types.Environment

	// ExcludedItemNumber is never selected as a conversion target.
	ExcludedItemNumber string

	// DryRun reports planned conversions without writing anything back.
	DryRun bool

	// OrderDelay is the fixed pause inserted after each order.
	OrderDelay time.Duration
}

// Driver orchestrates fetch -> classify -> rebuild -> validate -> write
// for each order in a batch.
type Driver struct {
	source   OrderSource
	resolver ReferenceResolver
	table    mapping.Table
	cfg      Config
	log      zerolog.Logger
}

// NewDriver creates a Driver. The mapping table is loaded once per run by
// the caller and is immutable for the driver's lifetime.
func NewDriver(source OrderSource, resolver ReferenceResolver, table mapping.Table, cfg Config, log zerolog.Logger) *Driver {
	return &Driver{
		source:   source,
		resolver: resolver,
		table:    table,
		cfg:      cfg,
		log:      log.With().Str("component", "driver").Logger(),
	}
}

// =============================================================================
// BATCH RUN
// =============================================================================

// Summary aggregates the per-order outcomes of a run.
type Summary struct {
	Outcomes []types.Outcome

	Converted         int
	ConvertedLines    int
	SkippedNoMatch    int
	SkippedNoExpenses int
	SkippedNotFound   int
	Errors            int

	DryRun  bool
	Elapsed time.Duration
}

// Run processes every code in the batch, strictly sequentially, and always
// returns a complete summary: no per-order failure escapes past that
// order's boundary. Cancellation stops the run between orders.
func (d *Driver) Run(ctx context.Context, codes []string) Summary {
	start := time.Now()
	summary := Summary{DryRun: d.cfg.DryRun}

	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			d.log.Warn().Int("remaining", len(codes)-i).Msg("run canceled between orders")
			break
		}

		outcome := d.reconcileOne(ctx, code)
		summary.record(outcome)
		d.logOutcome(outcome)

		if d.cfg.OrderDelay > 0 && i < len(codes)-1 {
			time.Sleep(d.cfg.OrderDelay)
		}
	}

	summary.Elapsed = time.Since(start)
	return summary
}

// record tallies one outcome into the summary counters.
func (s *Summary) record(o types.Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Kind {
	case types.OutcomeConverted:
		s.Converted++
		s.ConvertedLines += o.Converted
	case types.OutcomeSkippedNoMatch:
		s.SkippedNoMatch++
	case types.OutcomeSkippedNoExpenses:
		s.SkippedNoExpenses++
	case types.OutcomeSkippedNotFound:
		s.SkippedNotFound++
	case types.OutcomeError:
		s.Errors++
	}
}

func (d *Driver) logOutcome(o types.Outcome) {
	event := d.log.Info()
	if o.Kind == types.OutcomeError {
		event = d.log.Error().Err(o.Err)
	}
	event.Str("order", o.TranID).Str("outcome", string(o.Kind)).
		Int("converted", o.Converted).Bool("dry_run", o.DryRun).
		Msg(o.String())
}

// =============================================================================
// PER-ORDER STATE MACHINE
// =============================================================================

// reconcileOne takes a single order from Fetched to Done. All failure
// modes, panics included, collapse into an error outcome for this order
// only.
func (d *Driver) reconcileOne(ctx context.Context, code string) (outcome types.Outcome) {
	outcome = types.Outcome{TranID: code}

	defer func() {
		if r := recover(); r != nil {
			outcome.Kind = types.OutcomeError
			outcome.Err = fmt.Errorf("panic while reconciling %s: %v", code, r)
		}
	}()

	// ----- Fetched -----------------------------------------------------------
	order, err := d.source.GetOrderByCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			outcome.Kind = types.OutcomeSkippedNotFound
			return outcome
		}
		outcome.Kind = types.OutcomeError
		outcome.Err = fmt.Errorf("fetch: %w", err)
		return outcome
	}

	if len(order.ExpenseLines) == 0 {
		outcome.Kind = types.OutcomeSkippedNoExpenses
		return outcome
	}

	// ----- Classified --------------------------------------------------------
	classification, err := Classify(ctx, order, d.table, d.resolver, ClassifyConfig{
		Environment:        d.cfg.Environment,
		ExcludedItemNumber: d.cfg.ExcludedItemNumber,
	}, d.log)
	if err != nil {
		outcome.Kind = types.OutcomeError
		outcome.Err = fmt.Errorf("classify: %w", err)
		return outcome
	}

	if len(classification.ToConvert) == 0 {
		outcome.Kind = types.OutcomeSkippedNoMatch
		return outcome
	}

	// ----- RebuildReady ------------------------------------------------------
	originalExpenses := len(order.ExpenseLines)
	itemLines, expenseLines := Rebuild(order.ItemLines, classification.ToConvert, classification.ToKeep)

	updated := *order
	updated.ItemLines = itemLines
	updated.ExpenseLines = expenseLines

	// Re-assert the required pass-through fields. The rebuild never touches
	// them, but the remote system rejects an update that arrives without
	// them, so they are pinned from the fetched record right before the
	// write.
	updated.ID = order.ID
	updated.Entity = order.Entity

	if err := ValidateRebuild(&updated, originalExpenses, len(classification.ToConvert)); err != nil {
		outcome.Kind = types.OutcomeError
		outcome.Err = err
		return outcome
	}

	outcome.Converted = len(classification.ToConvert)

	// ----- DryRunReported ----------------------------------------------------
	if d.cfg.DryRun {
		outcome.Kind = types.OutcomeConverted
		outcome.DryRun = true
		return outcome
	}

	// ----- Written | WriteFailed ---------------------------------------------
	if err := d.source.UpdateOrder(ctx, &updated); err != nil {
		outcome.Kind = types.OutcomeError
		outcome.Converted = 0
		outcome.Err = fmt.Errorf("write-back: %w", err)
		return outcome
	}

	outcome.Kind = types.OutcomeConverted
	return outcome
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, errs.ErrNotFound)
}
