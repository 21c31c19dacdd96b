package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/xmlindex/pkg/types"
)

var (
	searchTopK         int
	searchThreshold    float64
	searchSemanticType string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a hybrid search query against --project's index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", types.DefaultTopK, "maximum results to return")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", types.DefaultScoreThreshold, "minimum hybrid score")
	searchCmd.Flags().StringVar(&searchSemanticType, "type", "", "filter results to a single semantic_type")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	query := strings.Join(args, " ")

	facade, err := buildFacade()
	if err != nil {
		return err
	}

	facade.Start(ctx)
	facade.WaitForReady(ctx)
	defer facade.Stop()

	resp := facade.Search(ctx, query, types.SearchOptions{
		TopK:           searchTopK,
		ScoreThreshold: searchThreshold,
		SemanticType:   searchSemanticType,
	})
	if resp.Err != nil {
		color.Yellow("%s: %s", resp.Err.Kind, resp.Err.Message)
		if resp.Err.Guidance != "" {
			fmt.Println(resp.Err.Guidance)
		}
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return nil
	}

	for _, r := range resp.Results {
		color.Cyan("%s:%d-%d", r.FilePath, r.LineRange[0], r.LineRange[1])
		fmt.Printf("  score %.4f  %s\n", r.Score, strings.Join(r.XMLElementHierarchy, " > "))
	}
	fmt.Printf("\n%d results in %dms\n", len(resp.Results), resp.QueryLatencyMs)
	return nil
}
