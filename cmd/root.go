// =============================================================================
// PO Reconcile - Root Command
// =============================================================================
//
// Root of the Cobra CLI. All subcommands hang off this command:
//
//   po-reconcile
//   ├── reconcile   (expense-to-item reconciliation over a code list)
//   ├── sync        (refresh the local reference cache)
//   ├── orders      (list / show orders for inspection)
//   └── version
//
// The root command owns the global flags (--config, --verbose, --quiet,
// --log-level), loads .env for secrets, and builds the shared zerolog
// logger.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mkardell/po-reconcile/internal/config"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// cfgFile is the path to the main configuration file (--config).
var cfgFile string

// verbose enables debug logging (-v).
var verbose bool

// quiet restricts logging to warnings and errors (-q).
var quiet bool

// logLevel is the explicit log level (--log-level); it wins over -v/-q.
var logLevel string

// =============================================================================
// ROOT COMMAND
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "po-reconcile",
	Short: "Reconcile purchase-order expense lines into catalog item lines",
	Long: `po-reconcile synchronizes purchase-order data with the external
order-management system, converting expense lines into structured item lines
according to the account-to-item mapping maintained by the finance team.

The local sqlite reference cache (accounts, catalog items, vendors,
departments) is kept fresh with the sync command; the reconcile command
drives the per-order conversion over a tabular work list of order codes.

Example usage:
  po-reconcile sync                         # refresh the reference cache
  po-reconcile reconcile --dry-run          # preview planned conversions
  po-reconcile reconcile                    # convert and write back
  po-reconcile orders show PO12345          # dump one order as JSON`,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml",
		"Path to the main configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"Only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Explicit log level (trace, debug, info, warn, error); overrides -v/-q")
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadRuntime loads .env, the main configuration, and builds the logger.
// Every subcommand that touches the pipeline starts here.
func loadRuntime() (*config.Config, zerolog.Logger, error) {
	// .env is optional; real deployments set the token in the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	return cfg, newLogger(cfg), nil
}

// newLogger builds the console logger. Level precedence (highest first):
//  1. --log-level
//  2. -v / -q (verbose wins a conflict warning, quiet wins the level)
//  3. config file log_level
//  4. info
func newLogger(cfg *config.Config) zerolog.Logger {
	level := determineLogLevel(cfg)

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using \"info\"\n", level)
		parsed = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(parsed).With().Timestamp().Logger()
}

func determineLogLevel(cfg *config.Config) string {
	if logLevel != "" {
		return logLevel
	}
	if verbose && quiet {
		fmt.Fprintln(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet")
		return "warn"
	}
	if verbose {
		return "debug"
	}
	if quiet {
		return "warn"
	}
	if cfg.LogLevel != "" {
		return cfg.LogLevel
	}
	return "info"
}
