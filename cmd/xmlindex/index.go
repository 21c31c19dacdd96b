package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the semantic index for --project",
	Long: `index starts the Service Facade for --project, runs the initial
indexing pass to completion, and reports the resulting chunk/file counts.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	facade, err := buildFacade()
	if err != nil {
		return err
	}

	facade.Start(ctx)
	facade.WaitForReady(ctx)
	defer facade.Stop()

	if !facade.IsAvailable() {
		if lastErr := facade.LastError(); lastErr != nil {
			color.Red("indexing failed: %v", lastErr)
			if lastErr.Guidance != "" {
				fmt.Println(lastErr.Guidance)
			}
			return lastErr
		}
		return fmt.Errorf("indexing did not complete")
	}

	status := facade.Status(ctx)
	color.Green("indexed %s", projectFlag)
	fmt.Printf("files: %d  chunks: %d\n", status.FileCount, status.ChunkCount)
	return nil
}
