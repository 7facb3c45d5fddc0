// =============================================================================
// PO Reconcile - Line Classifier
// =============================================================================
//
// The classifier partitions an order's expense lines into a "convert" set
// and a "keep" set. A line converts only when the whole chain holds:
//
//   expense line has an account reference
//     -> account resolves in the reference cache
//     -> the mapping table names an item for that account number
//     -> the mapped name resolves to a usable, non-excluded catalog item
//
// Any break in the chain keeps the line as an expense. Lookup misses and
// excluded-item matches are not errors; they drive the keep fallback and
// surface as warnings. The classification is pure over its inputs: the same
// order, mapping and cache state always yield the same partition, which is
// what makes re-running the tool over an already-converted order a no-op.
//
// =============================================================================

package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mkardell/po-reconcile/internal/errs"
	"github.com/mkardell/po-reconcile/internal/mapping"
	"github.com/mkardell/po-reconcile/internal/types"
)

// ReferenceResolver is the read surface of the reference cache the
// classifier depends on.
type ReferenceResolver interface {
	// FindAccount resolves an external account identifier within an
	// environment. errs.ErrNotFound when absent.
	FindAccount(ctx context.Context, externalID string, env types.Environment) (*types.Account, error)

	// FindItem resolves a mapped catalog name via the layered matching
	// strategy. errs.ErrNotFound when nothing matches, errs.ErrExcluded
	// when only the excluded item matches.
	FindItem(ctx context.Context, mappedName string, env types.Environment, excludedNumber string) (*types.Item, error)
}

// ClassifiedLine is an expense line marked for conversion together with
// everything the rebuilder needs to build its replacement item line.
type ClassifiedLine struct {
	Expense    types.ExpenseLine
	Account    types.Account
	Item       types.Item
	MappedName string
}

// Classification is the partition of an order's expense lines.
// len(ToConvert) + len(ToKeep) always equals the original expense count;
// every original line lands in exactly one of the two sets.
type Classification struct {
	ToConvert []ClassifiedLine
	ToKeep    []types.ExpenseLine
}

// ClassifyConfig carries the run settings the classifier needs. Passed
// explicitly so classification stays deterministic and testable.
type ClassifyConfig struct {
	Environment        types.Environment
	ExcludedItemNumber string
}

// Classify partitions the order's expense lines. Cache infrastructure
// failures (as opposed to lookup misses) abort classification and surface
// to the driver as a per-order error.
func Classify(ctx context.Context, order *types.Order, table mapping.Table, resolver ReferenceResolver, cfg ClassifyConfig, log zerolog.Logger) (Classification, error) {
	result := Classification{
		ToKeep: []types.ExpenseLine{},
	}

	for i, expense := range order.ExpenseLines {
		line := log.With().Str("order", order.TranID).Int("expense_line", i).Logger()

		if expense.Account == nil {
			result.ToKeep = append(result.ToKeep, expense)
			continue
		}

		account, err := resolver.FindAccount(ctx, expense.Account.ID, cfg.Environment)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				line.Debug().Str("account_ref", expense.Account.ID).Msg("account not in reference cache, keeping as expense")
				result.ToKeep = append(result.ToKeep, expense)
				continue
			}
			return Classification{}, fmt.Errorf("classify line %d: %w", i, err)
		}

		mappedName, ok := table.Lookup(account.Number)
		if !ok {
			result.ToKeep = append(result.ToKeep, expense)
			continue
		}

		item, err := resolver.FindItem(ctx, mappedName, cfg.Environment, cfg.ExcludedItemNumber)
		if err != nil {
			switch {
			case errors.Is(err, errs.ErrExcluded):
				line.Warn().Str("account", account.Number).Str("mapped_name", mappedName).
					Msg("mapped name resolves only to the excluded item, keeping as expense")
				result.ToKeep = append(result.ToKeep, expense)
				continue
			case errors.Is(err, errs.ErrNotFound):
				line.Warn().Str("account", account.Number).Str("mapped_name", mappedName).
					Msg("no catalog item for mapped name, keeping as expense")
				result.ToKeep = append(result.ToKeep, expense)
				continue
			default:
				return Classification{}, fmt.Errorf("classify line %d: %w", i, err)
			}
		}

		result.ToConvert = append(result.ToConvert, ClassifiedLine{
			Expense:    expense,
			Account:    *account,
			Item:       *item,
			MappedName: mappedName,
		})
	}

	return result, nil
}
