// =============================================================================
// PO Reconcile - Sync Command
// =============================================================================
//
// Refreshes the local sqlite reference cache from the external system:
// accounts, catalog items, vendors and departments. Each table syncs
// independently; a table that keeps failing after retries is skipped so the
// rest of the cache still refreshes.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkardell/po-reconcile/internal/cache"
	"github.com/mkardell/po-reconcile/internal/nsclient"
	"github.com/mkardell/po-reconcile/internal/refsync"
	"github.com/mkardell/po-reconcile/pkg/utils"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the local reference cache from the external system",
	Long: `The sync command mirrors the external system's reference tables into
the local sqlite cache used by reconciliation lookups. Run it before a
reconcile batch whenever accounts or catalog items may have changed
upstream.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync()
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync() error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	if err := utils.EnsureDir(filepath.Dir(cfg.CacheDB)); err != nil {
		return err
	}
	store, err := cache.Open(cfg.CacheDB)
	if err != nil {
		return err
	}
	defer store.Close()

	client := nsclient.New(nsclient.Options{
		BaseURL:              cfg.API.BaseURL,
		AccountID:            cfg.API.AccountID,
		Token:                cfg.Token(),
		Timeout:              cfg.API.Timeout.Std(),
		RetryAttempts:        cfg.RetryAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval.Std(),
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := refsync.New(client, store, log).Run(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, count := range result.Synced {
		total += count
	}
	fmt.Printf("Synced %d row(s) across %d table(s)", total, len(result.Synced))
	if len(result.Failed) > 0 {
		fmt.Printf("; %d table(s) failed", len(result.Failed))
	}
	fmt.Println()

	return nil
}
