package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timmy/hearth/internal/app"
	"github.com/timmy/hearth/internal/config"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/service"
	"github.com/timmy/hearth/internal/source"
	"github.com/timmy/hearth/internal/source/manifest"
)

var (
	configPath string
	jsonOutput bool
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "hearth-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	rootCmd := &cobra.Command{
		Use:   "hearth-ingest",
		Short: "Batch jobs for the research document corpus",
		Long: `hearth-ingest loads documents from JSON Lines manifests, backfills
document and tag embeddings, and exports the corpus to object storage.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output stats as JSON")

	rootCmd.AddCommand(documentsCmd(), embeddingsCmd(), tagsCmd(), exportCmd())

	if err := rootCmd.Execute(); err != nil {
		_ = logger.Sync()
		os.Exit(1)
	}
}

func documentsCmd() *cobra.Command {
	var (
		sourceType string
		path       string
		key        string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Ingest documents from a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) (*service.IngestStats, error) {
				var src source.Source
				switch sourceType {
				case "jsonl":
					if path == "" {
						return nil, errors.New("--path is required for the jsonl source")
					}
					src = manifest.NewFileAdapter(path)
				case "s3":
					if a.Storage == nil {
						return nil, errors.New("storage is not enabled in config")
					}
					if key == "" {
						return nil, errors.New("--key is required for the s3 source")
					}
					src = manifest.NewStorageAdapter(a.Storage, key)
				default:
					return nil, fmt.Errorf("unknown source type %q", sourceType)
				}
				return a.IngestService.IngestFromSource(ctx, src, limit)
			})
		},
	}
	cmd.Flags().StringVar(&sourceType, "source", "jsonl", "Manifest source: jsonl or s3")
	cmd.Flags().StringVar(&path, "path", "", "Local manifest path (jsonl source)")
	cmd.Flags().StringVar(&key, "key", "", "Object key of the manifest (s3 source)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items to ingest (0 = all)")
	return cmd
}

func embeddingsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "embeddings",
		Short: "Embed documents stored without an embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) (*service.IngestStats, error) {
				return a.IngestService.RegenerateEmbeddings(ctx, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of documents (0 = all)")
	return cmd
}

func tagsCmd() *cobra.Command {
	var taxonomyPath string
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Seed the tag taxonomy and embed tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) (*service.IngestStats, error) {
				p := taxonomyPath
				if p == "" {
					p = a.Config.Taxonomy.Path
				}
				var tf *service.TaxonomyFile
				if p != "" {
					var err error
					if tf, err = service.LoadTaxonomyFile(p); err != nil {
						return nil, err
					}
				}
				return a.IngestService.EmbedTags(ctx, tf)
			})
		},
	}
	cmd.Flags().StringVar(&taxonomyPath, "taxonomy", "", "Taxonomy YAML file (defaults to taxonomy.path)")
	return cmd
}

func exportCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the corpus as a manifest to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) (*service.IngestStats, error) {
				return a.IngestService.ExportCorpus(ctx, key)
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "exports/corpus.jsonl", "Object key to write")
	return cmd
}

// withApp loads config, builds the app, runs fn with a context cancelled on
// SIGINT/SIGTERM, and reports the resulting stats.
func withApp(fn func(ctx context.Context, a *app.App) (*service.IngestStats, error)) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize application: %v", err)
		return err
	}
	defer a.Close()

	stats, err := fn(ctx, a)
	if stats != nil {
		printStats(stats)
	}
	if err != nil {
		logger.Error("Job failed: %v", err)
		return err
	}
	return nil
}

func printStats(stats *service.IngestStats) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(stats)
		return
	}
	logger.With(logger.Fields{
		"job_id":    stats.JobID,
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"skipped":   stats.SkippedItems,
		"failed":    stats.FailedItems,
	}).Info(context.Background(), "Job completed")
}
