// Package commands implements the docindex CLI.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ledgerlens/docindex/internal/config"
	"github.com/ledgerlens/docindex/internal/observability"
)

var (
	cfgFile    string
	verbose    bool
	noColor    bool
	jsonOutput bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docindex",
	Short: "Local document indexing - extract, recognize, and search financial documents",
	Long: `docindex processes receipts, invoices and statements entirely on-device:
it validates files, pulls the PDF text layer (with an OCR fallback for
scans and photos), extracts dates, amounts and vendors, and maintains a
searchable semantic index.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env is fine; real config comes from file and env.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "docindex",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
