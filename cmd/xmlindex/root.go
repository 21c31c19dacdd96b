package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/xmlindex/internal/config"
	"github.com/dshills/xmlindex/internal/embedder"
	"github.com/dshills/xmlindex/internal/service"
)

var (
	projectFlag string
	dbDirFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "xmlindex",
	Short: "Semantic index for XML configuration artifacts",
	Long: `xmlindex builds and queries a per-project semantic index over XML
configuration artifacts (APIs, sequences, endpoints, and similar).`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", ".", "project directory to index/search")
	rootCmd.PersistentFlags().StringVar(&dbDirFlag, "db-dir", "", "override the per-project application-data root (XMLINDEX_DB_DIR)")
}

// buildFacade resolves configuration and builds (but does not start) the
// Service Facade for the --project directory.
func buildFacade() (*service.Facade, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbDirFlag != "" {
		cfg.DBDir = dbDirFlag
	}

	norm, err := config.NormalizeProjectPath(projectFlag)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}

	var provider embedder.ModelProvider
	if cfg.ModelDir != "" {
		provider = embedder.NewDirModelProvider(cfg.ModelDir)
	}

	return service.New(norm, service.Deps{Config: cfg, ModelProvider: provider}), nil
}
