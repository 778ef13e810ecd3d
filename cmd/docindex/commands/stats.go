package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ix := openIndex(cfg)
	stats := ix.Stats()

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(stats)
	}

	fmt.Printf("vectors:      %d\n", stats.VectorCount)
	fmt.Printf("dimensions:   %d\n", stats.Dimensions)
	fmt.Printf("size:         %d bytes\n", stats.IndexSizeBytes)
	if !stats.LastUpdated.IsZero() {
		fmt.Printf("last updated: %s\n", stats.LastUpdated.Format("2006-01-02 15:04:05"))
	}
	return nil
}
