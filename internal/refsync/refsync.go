// =============================================================================
// PO Reconcile - Reference Table Sync
// =============================================================================
//
// Fetch-then-upsert glue that mirrors the external system's reference tables
// (accounts, catalog items, vendors, departments) into the local sqlite
// cache. Each table syncs independently: a failing table is logged and
// skipped so the remaining tables still refresh, leaving the cache at
// reduced fidelity rather than stale across the board.
//
// Transient fetch failures are already retried with backoff inside the
// client; this layer only decides what happens when retries run out.
//
// =============================================================================

package refsync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mkardell/po-reconcile/internal/cache"
	"github.com/mkardell/po-reconcile/internal/nsclient"
)

// Syncer refreshes the local reference cache from the external system.
type Syncer struct {
	client *nsclient.Client
	store  *cache.Store
	log    zerolog.Logger
}

// New creates a Syncer.
func New(client *nsclient.Client, store *cache.Store, log zerolog.Logger) *Syncer {
	return &Syncer{
		client: client,
		store:  store,
		log:    log.With().Str("component", "refsync").Logger(),
	}
}

// Result reports how each table fared.
type Result struct {
	Synced map[string]int // table -> rows upserted
	Failed map[string]error
}

// Run syncs all reference tables. The returned error is non-nil only when
// every table failed; partial success is reported through Result.
func (s *Syncer) Run(ctx context.Context) (Result, error) {
	result := Result{
		Synced: map[string]int{},
		Failed: map[string]error{},
	}

	tables := []struct {
		name string
		sync func(context.Context) (int, error)
	}{
		{"accounts", s.syncAccounts},
		{"items", s.syncItems},
		{"vendors", s.syncVendors},
		{"departments", s.syncDepartments},
	}

	for _, table := range tables {
		count, err := table.sync(ctx)
		if err != nil {
			s.log.Error().Err(err).Str("table", table.name).Msg("reference table sync failed")
			result.Failed[table.name] = err
			continue
		}
		s.log.Info().Str("table", table.name).Int("rows", count).Msg("reference table synced")
		result.Synced[table.name] = count
	}

	if len(result.Synced) == 0 && len(result.Failed) > 0 {
		return result, fmt.Errorf("all %d reference tables failed to sync", len(result.Failed))
	}
	return result, nil
}

func (s *Syncer) syncAccounts(ctx context.Context) (int, error) {
	accounts, err := s.client.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch accounts: %w", err)
	}
	if err := s.store.UpsertAccounts(ctx, accounts); err != nil {
		return 0, fmt.Errorf("upsert accounts: %w", err)
	}
	return len(accounts), nil
}

func (s *Syncer) syncItems(ctx context.Context) (int, error) {
	items, err := s.client.ListItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch items: %w", err)
	}
	if err := s.store.UpsertItems(ctx, items); err != nil {
		return 0, fmt.Errorf("upsert items: %w", err)
	}
	return len(items), nil
}

func (s *Syncer) syncVendors(ctx context.Context) (int, error) {
	vendors, err := s.client.ListVendors(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch vendors: %w", err)
	}
	if err := s.store.UpsertVendors(ctx, vendors); err != nil {
		return 0, fmt.Errorf("upsert vendors: %w", err)
	}
	return len(vendors), nil
}

func (s *Syncer) syncDepartments(ctx context.Context) (int, error) {
	departments, err := s.client.ListDepartments(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch departments: %w", err)
	}
	if err := s.store.UpsertDepartments(ctx, departments); err != nil {
		return 0, fmt.Errorf("upsert departments: %w", err)
	}
	return len(departments), nil
}
