// =============================================================================
// PO Reconcile - Reconcile Command
// =============================================================================
//
// The main command. Pipeline for a run:
//
//   1. Load configuration, mapping table and the order-code work list
//      (any failure here halts the run before an order is touched)
//   2. Open the local reference cache (read-only for this command)
//   3. Drive each order through fetch -> classify -> rebuild -> validate
//      -> write-back, strictly sequentially
//   4. Print the summary, write the XLSX run report
//   5. Archive the code list (live runs only)
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkardell/po-reconcile/internal/cache"
	"github.com/mkardell/po-reconcile/internal/codelist"
	"github.com/mkardell/po-reconcile/internal/mapping"
	"github.com/mkardell/po-reconcile/internal/nsclient"
	"github.com/mkardell/po-reconcile/internal/reconcile"
	"github.com/mkardell/po-reconcile/internal/report"
	"github.com/mkardell/po-reconcile/internal/types"
	"github.com/mkardell/po-reconcile/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun reports planned conversions without writing anything back.
var dryRun bool

// environment overrides the configured environment partition.
var environment string

// codesFile overrides the configured code list path.
var codesFile string

// mappingFile overrides the configured mapping path.
var mappingFile string

// =============================================================================
// RECONCILE COMMAND
// =============================================================================

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Convert qualifying expense lines to item lines across a batch of orders",
	Long: `The reconcile command reads the order-code work list, fetches each
purchase order from the external system, and converts expense lines whose
accounts map to a resolvable catalog item into proper item lines. Orders are
written back with full replacement of both line collections.

Each order is an independent unit of work: a failure is recorded and the
batch continues. An order is only written when at least one line converts.

With --dry-run the planned conversions are reported (and included in the run
report) but nothing is written back.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile()
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Report planned conversions without writing back")
	reconcileCmd.Flags().StringVar(&environment, "environment", "",
		"Cache partition to use: production or sandbox (default from config)")
	reconcileCmd.Flags().StringVar(&codesFile, "codes", "",
		"Path to the order-code work list (default from config)")
	reconcileCmd.Flags().StringVar(&mappingFile, "mapping", "",
		"Path to the account-to-item mapping file (default from config)")
}

// =============================================================================
// MAIN RUN FUNCTION
// =============================================================================

func runReconcile() error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	env := cfg.Environment
	if environment != "" {
		env, err = types.ParseEnvironment(environment)
		if err != nil {
			return err
		}
	}

	mappingPath := cfg.MappingFile
	if mappingFile != "" {
		mappingPath = mappingFile
	}
	codesPath := cfg.CodeListFile
	if codesFile != "" {
		codesPath = codesFile
	}

	// Fatal-before-first-order inputs: mapping and work list.
	table, err := mapping.Load(mappingPath)
	if err != nil {
		return err
	}
	log.Info().Int("entries", len(table)).Str("file", mappingPath).Msg("mapping loaded")

	codes, err := codelist.ReadCodes(codesPath)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		log.Warn().Str("file", codesPath).Msg("code list is empty, nothing to do")
		return nil
	}
	log.Info().Int("orders", len(codes)).Str("file", codesPath).Msg("work list loaded")

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

	driver := reconcile.NewDriver(client, store, table, reconcile.Config{
		Environment:        env,
		ExcludedItemNumber: cfg.ExcludedItemNumber,
		DryRun:             dryRun,
		OrderDelay:         cfg.OrderDelay.Std(),
	}, log)

	// Cooperative cancellation: Ctrl-C finishes the in-flight order and
	// stops before the next one.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary := driver.Run(ctx, codes)

	fmt.Println(report.Describe(summary))

	if err := utils.EnsureDir(cfg.ReportDir); err != nil {
		return err
	}
	reportPath, err := report.Write(cfg.ReportDir, summary)
	if err != nil {
		return err
	}
	log.Info().Str("report", reportPath).Msg("run report written")

	// Archive the work list only after a completed live run, so a dry run
	// can be promoted to a live run on the same file.
	if !dryRun && ctx.Err() == nil {
		archived, err := utils.ArchiveFile(codesPath, cfg.ArchiveDir)
		if err != nil {
			log.Warn().Err(err).Msg("could not archive code list")
		} else {
			log.Info().Str("archived", archived).Msg("code list archived")
		}
	}

	return nil
}
