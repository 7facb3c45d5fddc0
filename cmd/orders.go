// =============================================================================
// PO Reconcile - Orders Command
// =============================================================================
//
// Inspection helpers for the external system:
//
//   orders list          - summaries of recently modified purchase orders
//   orders show <code>   - one full order dumped as JSON
//
// =============================================================================

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkardell/po-reconcile/internal/nsclient"
)

// listLimit caps the orders list output.
var listLimit int

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect purchase orders in the external system",
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently modified purchase orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrdersList()
	},
}

var ordersShowCmd = &cobra.Command{
	Use:   "show <code>",
	Short: "Dump a single purchase order as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrdersShow(args[0])
	},
}

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersShowCmd)

	ordersListCmd.Flags().IntVar(&listLimit, "limit", 25,
		"Maximum number of orders to list")
}

func newClient() (*nsclient.Client, error) {
	cfg, log, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	return nsclient.New(nsclient.Options{
		BaseURL:              cfg.API.BaseURL,
		AccountID:            cfg.API.AccountID,
		Token:                cfg.Token(),
		Timeout:              cfg.API.Timeout.Std(),
		RetryAttempts:        cfg.RetryAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval.Std(),
	}, log), nil
}

func runOrdersList() error {
	client, err := newClient()
	if err != nil {
		return err
	}

	summaries, err := client.ListOrders(context.Background(), listLimit)
	if err != nil {
		return err
	}

	for _, s := range summaries {
		fmt.Printf("%-12s  %-12s  %s\n", s.TranID, s.TranDate, s.Total)
	}
	return nil
}

func runOrdersShow(code string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	order, err := client.GetOrderByCode(context.Background(), code)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(order)
}
