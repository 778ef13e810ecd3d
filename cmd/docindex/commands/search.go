package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ledgerlens/docindex/internal/index"
	"github.com/ledgerlens/docindex/internal/search"
)

var (
	searchTopK         int
	searchCurrency     string
	searchVendor       string
	searchMockEmbedder bool
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search the document index",
	Long: `Embed the query text and return the most similar indexed documents,
ranked by cosine similarity. Filters narrow the candidate set before
ranking, so the full top-k is still returned when enough documents match.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", 5, "number of results")
	searchCmd.Flags().StringVar(&searchCurrency, "currency", "", "only documents in this currency")
	searchCmd.Flags().StringVar(&searchVendor, "vendor", "", "only documents from vendors containing this text")
	searchCmd.Flags().BoolVar(&searchMockEmbedder, "mock-embedder", false, "use a deterministic local embedder")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	embedder, err := buildEmbedder(cfg, searchMockEmbedder)
	if err != nil {
		return err
	}

	ix := openIndex(cfg)
	svc := search.NewService(embedder, ix, search.Config{}, logger)

	var results []index.Result
	if filter := buildFilter(); filter != nil {
		results, err = svc.QueryWithFilter(ctx, args[0], filter, searchTopK)
	} else {
		results, err = svc.Query(ctx, args[0], searchTopK)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(results)
	}

	if len(results) == 0 {
		warnf("no matching documents")
		return nil
	}

	bold := color.New(color.Bold)
	if noColor {
		bold.DisableColor()
	}
	for i, r := range results {
		bold.Printf("%d. %s (score %.4f)\n", i+1, r.ID, r.Score)
		for _, key := range []string{"vendor", "date", "amount", "currency", "file_name"} {
			if v, ok := r.Metadata[key]; ok && v != "" {
				fmt.Printf("   %-9s %s\n", key+":", v)
			}
		}
	}
	return nil
}

func buildFilter() index.FilterFunc {
	if searchCurrency == "" && searchVendor == "" {
		return nil
	}
	currency := strings.ToUpper(searchCurrency)
	vendor := strings.ToLower(searchVendor)
	return func(id string, metadata map[string]string) bool {
		if currency != "" && metadata["currency"] != currency {
			return false
		}
		if vendor != "" && !strings.Contains(strings.ToLower(metadata["vendor"]), vendor) {
			return false
		}
		return true
	}
}
