package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the Service Facade's readiness and index size for --project",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	status := facade.Status(ctx)
	switch status.State.String() {
	case "ready":
		color.Green("ready")
	case "failed":
		color.Red("failed")
	default:
		color.Yellow(status.State.String())
	}
	fmt.Printf("project: %s\n", projectFlag)
	fmt.Printf("files: %d  chunks: %d\n", status.FileCount, status.ChunkCount)
	if status.LastError != nil {
		fmt.Printf("last error: %s: %s\n", status.LastError.Kind, status.LastError.Message)
	}
	return nil
}
